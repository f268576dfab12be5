package sqlstore

import (
	"context"
	"database/sql"

	"github.com/swinetrack/breeding-engine/breeding"
)

const auditColumns = `created_by, updated_by, created_at, updated_at`

func auditDest(a *breeding.Audit) []any {
	return []any{&a.CreatedBy, &a.UpdatedBy, &a.CreatedAt, &a.UpdatedAt}
}

func auditArgs(a breeding.Audit) []any {
	return []any{a.CreatedBy, a.UpdatedBy, a.CreatedAt.UTC(), a.UpdatedAt.UTC()}
}

func withAudit(a breeding.Audit, args ...any) []any {
	return append(args, auditArgs(a)...)
}

// =============================================================================
// SOWS
// =============================================================================

const sowColumns = `id, ear_tag, alias, breed, farm_name, birth_date, entry_date, status,
	reproductive_status, expected_farrowing_date, last_service_date, last_weaning_date,
	parity_count, total_piglets_born, total_piglets_alive, total_piglets_dead, total_abortions,
	current_weight, notes, ` + auditColumns

func scanSow(row rowScanner) (breeding.Sow, error) {
	var (
		s                         breeding.Sow
		birth, entry, efd, ls, lw breeding.Date
	)
	dest := []any{&s.ID, &s.EarTag, &s.Alias, &s.Breed, &s.FarmName, &birth, &entry, &s.Status,
		&s.ReproductiveStatus, &efd, &ls, &lw,
		&s.ParityCount, &s.TotalPigletsBorn, &s.TotalPigletsAlive, &s.TotalPigletsDead, &s.TotalAbortions,
		&s.CurrentWeight, &s.Notes}
	if err := row.Scan(append(dest, auditDest(&s.Audit)...)...); err != nil {
		return s, err
	}
	s.BirthDate, s.EntryDate = datePtr(birth), datePtr(entry)
	s.ExpectedFarrowingDate, s.LastServiceDate, s.LastWeaningDate = datePtr(efd), datePtr(ls), datePtr(lw)
	return s, nil
}

func (r *repo) GetSow(ctx context.Context, id int64) (*breeding.Sow, error) {
	return getOne(ctx, r, "sow", id, `SELECT `+sowColumns+` FROM sows WHERE id = ?`, scanSow)
}

func (r *repo) ListSows(ctx context.Context, f breeding.SowFilter) ([]breeding.Sow, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.ReproductiveStatus != "" {
		w.add("reproductive_status = ?", string(f.ReproductiveStatus))
	}
	return list(ctx, r, "sows", `SELECT `+sowColumns+` FROM sows`+w.String()+` ORDER BY id`, w.args, scanSow)
}

func sowArgs(s *breeding.Sow) []any {
	return []any{s.EarTag, s.Alias, s.Breed, s.FarmName, optDate(s.BirthDate), optDate(s.EntryDate), string(s.Status),
		string(s.ReproductiveStatus), optDate(s.ExpectedFarrowingDate), optDate(s.LastServiceDate), optDate(s.LastWeaningDate),
		s.ParityCount, s.TotalPigletsBorn, s.TotalPigletsAlive, s.TotalPigletsDead, s.TotalAbortions,
		s.CurrentWeight, s.Notes}
}

func (r *repo) CreateSow(ctx context.Context, s *breeding.Sow) error {
	id, err := r.insert(ctx, `
		INSERT INTO sows (ear_tag, alias, breed, farm_name, birth_date, entry_date, status,
			reproductive_status, expected_farrowing_date, last_service_date, last_weaning_date,
			parity_count, total_piglets_born, total_piglets_alive, total_piglets_dead, total_abortions,
			current_weight, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(s.Audit, sowArgs(s)...)...)
	if err != nil {
		return r.writeErr(err, "sow", "ear_tag", s.EarTag)
	}
	s.ID = id
	return nil
}

func (r *repo) UpdateSow(ctx context.Context, s *breeding.Sow) error {
	args := append(sowArgs(s), s.UpdatedBy, s.UpdatedAt.UTC(), s.ID)
	res, err := r.exec(ctx, `
		UPDATE sows SET ear_tag = ?, alias = ?, breed = ?, farm_name = ?, birth_date = ?, entry_date = ?, status = ?,
			reproductive_status = ?, expected_farrowing_date = ?, last_service_date = ?, last_weaning_date = ?,
			parity_count = ?, total_piglets_born = ?, total_piglets_alive = ?, total_piglets_dead = ?, total_abortions = ?,
			current_weight = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`, args...)
	return r.checkUpdate(res, err, "sow", s.ID, s.EarTag)
}

// checkUpdate maps the outcome of a single-row UPDATE.
func (r *repo) checkUpdate(res sql.Result, err error, entity string, id int64, tag string) error {
	if err != nil {
		return r.writeErr(err, entity, "ear_tag", tag)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return breeding.NotFound(entity, id)
	}
	return nil
}

// =============================================================================
// BOARS
// =============================================================================

const boarColumns = `id, ear_tag, name, breed, status, notes, ` + auditColumns

func scanBoar(row rowScanner) (breeding.Boar, error) {
	var b breeding.Boar
	dest := []any{&b.ID, &b.EarTag, &b.Name, &b.Breed, &b.Status, &b.Notes}
	err := row.Scan(append(dest, auditDest(&b.Audit)...)...)
	return b, err
}

func (r *repo) GetBoar(ctx context.Context, id int64) (*breeding.Boar, error) {
	return getOne(ctx, r, "boar", id, `SELECT `+boarColumns+` FROM boars WHERE id = ?`, scanBoar)
}

func (r *repo) ListBoars(ctx context.Context, f breeding.BoarFilter) ([]breeding.Boar, error) {
	var w where
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	return list(ctx, r, "boars", `SELECT `+boarColumns+` FROM boars`+w.String()+` ORDER BY id`, w.args, scanBoar)
}

func (r *repo) CreateBoar(ctx context.Context, b *breeding.Boar) error {
	id, err := r.insert(ctx, `
		INSERT INTO boars (ear_tag, name, breed, status, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(b.Audit, b.EarTag, b.Name, b.Breed, string(b.Status), b.Notes)...)
	if err != nil {
		return r.writeErr(err, "boar", "ear_tag", b.EarTag)
	}
	b.ID = id
	return nil
}

func (r *repo) UpdateBoar(ctx context.Context, b *breeding.Boar) error {
	res, err := r.exec(ctx, `
		UPDATE boars SET ear_tag = ?, name = ?, breed = ?, status = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		b.EarTag, b.Name, b.Breed, string(b.Status), b.Notes, b.UpdatedBy, b.UpdatedAt.UTC(), b.ID)
	return r.checkUpdate(res, err, "boar", b.ID, b.EarTag)
}
