package sqlstore

import (
	"context"
	"database/sql"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// PIGLETS
// =============================================================================

const pigletColumns = `id, birth_id, sow_id, ear_tag, sex, birth_order, birth_weight, birth_status,
	current_status, weaning_date, weaning_weight, notes, ` + auditColumns

func scanPiglet(row rowScanner) (breeding.Piglet, error) {
	var (
		p       breeding.Piglet
		tag     sql.NullString
		order   sql.NullInt64
		weaning breeding.Date
	)
	dest := []any{&p.ID, &p.BirthID, &p.SowID, &tag, &p.Sex, &order, &p.BirthWeight, &p.BirthStatus,
		&p.CurrentStatus, &weaning, &p.WeaningWeight, &p.Notes}
	if err := row.Scan(append(dest, auditDest(&p.Audit)...)...); err != nil {
		return p, err
	}
	p.EarTag, p.BirthOrder, p.WeaningDate = tag.String, intPtr(order), datePtr(weaning)
	return p, nil
}

func (r *repo) GetPiglet(ctx context.Context, id int64) (*breeding.Piglet, error) {
	return getOne(ctx, r, "piglet", id, `SELECT `+pigletColumns+` FROM piglets WHERE id = ?`, scanPiglet)
}

func (r *repo) ListPiglets(ctx context.Context, f breeding.PigletFilter) ([]breeding.Piglet, error) {
	var w where
	if f.BirthID != 0 {
		w.add("birth_id = ?", f.BirthID)
	}
	if f.SowID != 0 {
		w.add("sow_id = ?", f.SowID)
	}
	if f.CurrentStatus != "" {
		w.add("current_status = ?", string(f.CurrentStatus))
	}
	if f.BirthStatus != "" {
		w.add("birth_status = ?", string(f.BirthStatus))
	}
	query := `SELECT ` + pigletColumns + ` FROM piglets` + w.String() +
		` ORDER BY birth_order IS NULL, birth_order, id`
	return list(ctx, r, "piglets", query, w.args, scanPiglet)
}

func pigletArgs(p *breeding.Piglet) []any {
	return []any{p.BirthID, p.SowID, nullString(p.EarTag), string(p.Sex), optInt(p.BirthOrder), p.BirthWeight,
		string(p.BirthStatus), string(p.CurrentStatus), optDate(p.WeaningDate), p.WeaningWeight, p.Notes}
}

func (r *repo) CreatePiglet(ctx context.Context, p *breeding.Piglet) error {
	id, err := r.insert(ctx, `
		INSERT INTO piglets (birth_id, sow_id, ear_tag, sex, birth_order, birth_weight, birth_status,
			current_status, weaning_date, weaning_weight, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(p.Audit, pigletArgs(p)...)...)
	if err != nil {
		return r.writeErr(err, "piglet", "ear_tag", p.EarTag)
	}
	p.ID = id
	return nil
}

func (r *repo) UpdatePiglet(ctx context.Context, p *breeding.Piglet) error {
	res, err := r.exec(ctx, `
		UPDATE piglets SET birth_id = ?, sow_id = ?, ear_tag = ?, sex = ?, birth_order = ?, birth_weight = ?,
			birth_status = ?, current_status = ?, weaning_date = ?, weaning_weight = ?, notes = ?,
			updated_by = ?, updated_at = ?
		WHERE id = ?`,
		append(pigletArgs(p), p.UpdatedBy, p.UpdatedAt.UTC(), p.ID)...)
	return r.checkUpdate(res, err, "piglet", p.ID, p.EarTag)
}

func (r *repo) DeletePiglet(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "piglet", id, `DELETE FROM piglets WHERE id = ?`, id)
}

func (r *repo) WeanPiglets(ctx context.Context, birthID int64, on breeding.Date) (int, error) {
	res, err := r.exec(ctx, `
		UPDATE piglets SET current_status = ?, weaning_date = ?
		WHERE birth_id = ? AND current_status = ?`,
		string(breeding.PigletWeaned), on.String(), birthID, string(breeding.PigletLactating))
	if err != nil {
		return 0, r.writeErr(err, "piglet", "", "")
	}
	n, err := res.RowsAffected()
	return int(n), err
}
