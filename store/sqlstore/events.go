package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/swinetrack/breeding-engine/breeding"
)

// =============================================================================
// HEATS
// =============================================================================

const heatColumns = `id, sow_id, heat_date, heat_end_date, intensity, induced, induction_protocol,
	status, notes, ` + auditColumns

func scanHeat(row rowScanner) (breeding.Heat, error) {
	var (
		h   breeding.Heat
		end breeding.Date
	)
	dest := []any{&h.ID, &h.SowID, &h.HeatDate, &end, &h.Intensity, &h.Induced, &h.InductionProtocol,
		&h.Status, &h.Notes}
	if err := row.Scan(append(dest, auditDest(&h.Audit)...)...); err != nil {
		return h, err
	}
	h.HeatEndDate = datePtr(end)
	return h, nil
}

func (r *repo) GetHeat(ctx context.Context, id int64) (*breeding.Heat, error) {
	return getOne(ctx, r, "heat", id, `SELECT `+heatColumns+` FROM heats WHERE id = ?`, scanHeat)
}

func (r *repo) ListHeats(ctx context.Context, f breeding.HeatFilter) ([]breeding.Heat, error) {
	var w where
	if f.SowID != 0 {
		w.add("sow_id = ?", f.SowID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		args := make([]any, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i], args[i] = "?", string(s)
		}
		w.add("status IN ("+strings.Join(marks, ", ")+")", args...)
	}
	if f.Unserviced {
		w.add("NOT EXISTS (SELECT 1 FROM services s WHERE s.heat_id = heats.id)")
	}
	if f.WindowEndsBefore != nil {
		w.add("COALESCE(heat_end_date, heat_date) < ?", f.WindowEndsBefore.String())
	}
	if f.HeatFrom != nil {
		w.add("heat_date >= ?", f.HeatFrom.String())
	}
	if f.HeatTo != nil {
		w.add("heat_date <= ?", f.HeatTo.String())
	}
	query := `SELECT ` + heatColumns + ` FROM heats` + w.String() +
		` ORDER BY heat_date DESC, id DESC` + limitClause(f.Limit)
	return list(ctx, r, "heats", query, w.args, scanHeat)
}

func heatArgs(h *breeding.Heat) []any {
	return []any{h.SowID, h.HeatDate.String(), optDate(h.HeatEndDate), string(h.Intensity), h.Induced,
		h.InductionProtocol, string(h.Status), h.Notes}
}

func (r *repo) CreateHeat(ctx context.Context, h *breeding.Heat) error {
	id, err := r.insert(ctx, `
		INSERT INTO heats (sow_id, heat_date, heat_end_date, intensity, induced, induction_protocol,
			status, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(h.Audit, heatArgs(h)...)...)
	if err != nil {
		return r.writeErr(err, "heat", "", "")
	}
	h.ID = id
	return nil
}

func (r *repo) UpdateHeat(ctx context.Context, h *breeding.Heat) error {
	return r.affectOne(ctx, "heat", h.ID, `
		UPDATE heats SET sow_id = ?, heat_date = ?, heat_end_date = ?, intensity = ?, induced = ?,
			induction_protocol = ?, status = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		append(heatArgs(h), h.UpdatedBy, h.UpdatedAt.UTC(), h.ID)...)
}

func (r *repo) DeleteHeat(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "heat", id, `DELETE FROM heats WHERE id = ?`, id)
}

// =============================================================================
// SERVICES
// =============================================================================

const serviceColumns = `id, sow_id, heat_id, boar_id, service_date, service_number, service_type,
	mating_duration_minutes, mating_quality, insemination_type, semen_dose_code, semen_volume_ml,
	semen_concentration, technician_name, success, notes, ` + auditColumns

func scanService(row rowScanner) (breeding.Service, error) {
	var (
		s        breeding.Service
		boar     sql.NullInt64
		duration sql.NullInt64
		success  sql.NullBool
	)
	dest := []any{&s.ID, &s.SowID, &s.HeatID, &boar, &s.ServiceDate, &s.ServiceNumber, &s.ServiceType,
		&duration, &s.MatingQuality, &s.InseminationType, &s.SemenDoseCode, &s.SemenVolumeML,
		&s.SemenConcentration, &s.TechnicianName, &success, &s.Notes}
	if err := row.Scan(append(dest, auditDest(&s.Audit)...)...); err != nil {
		return s, err
	}
	s.BoarID, s.MatingDurationMinutes, s.Success = idPtr(boar), intPtr(duration), boolPtr(success)
	return s, nil
}

func (r *repo) GetService(ctx context.Context, id int64) (*breeding.Service, error) {
	return getOne(ctx, r, "service", id, `SELECT `+serviceColumns+` FROM services WHERE id = ?`, scanService)
}

func (r *repo) ListServices(ctx context.Context, f breeding.ServiceFilter) ([]breeding.Service, error) {
	var w where
	if f.SowID != 0 {
		w.add("sow_id = ?", f.SowID)
	}
	if f.HeatID != 0 {
		w.add("heat_id = ?", f.HeatID)
	}
	query := `SELECT ` + serviceColumns + ` FROM services` + w.String() +
		` ORDER BY service_date DESC, id DESC` + limitClause(f.Limit)
	return list(ctx, r, "services", query, w.args, scanService)
}

func serviceArgs(s *breeding.Service) []any {
	return []any{s.SowID, s.HeatID, optID(s.BoarID), s.ServiceDate.String(), s.ServiceNumber, string(s.ServiceType),
		optInt(s.MatingDurationMinutes), s.MatingQuality, s.InseminationType, s.SemenDoseCode, s.SemenVolumeML,
		s.SemenConcentration, s.TechnicianName, optBool(s.Success), s.Notes}
}

func (r *repo) CreateService(ctx context.Context, s *breeding.Service) error {
	id, err := r.insert(ctx, `
		INSERT INTO services (sow_id, heat_id, boar_id, service_date, service_number, service_type,
			mating_duration_minutes, mating_quality, insemination_type, semen_dose_code, semen_volume_ml,
			semen_concentration, technician_name, success, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(s.Audit, serviceArgs(s)...)...)
	if err != nil {
		return r.writeErr(err, "service", "", "")
	}
	s.ID = id
	return nil
}

func (r *repo) UpdateService(ctx context.Context, s *breeding.Service) error {
	return r.affectOne(ctx, "service", s.ID, `
		UPDATE services SET sow_id = ?, heat_id = ?, boar_id = ?, service_date = ?, service_number = ?,
			service_type = ?, mating_duration_minutes = ?, mating_quality = ?, insemination_type = ?,
			semen_dose_code = ?, semen_volume_ml = ?, semen_concentration = ?, technician_name = ?,
			success = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		append(serviceArgs(s), s.UpdatedBy, s.UpdatedAt.UTC(), s.ID)...)
}

func (r *repo) DeleteService(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "service", id, `DELETE FROM services WHERE id = ?`, id)
}

// =============================================================================
// PREGNANCIES
// =============================================================================

const pregnancyColumns = `id, sow_id, service_id, conception_date, expected_farrowing_date, confirmed,
	confirmation_date, confirmation_method, status, ultrasound_count, last_ultrasound_date,
	estimated_piglets, notes, ` + auditColumns

func scanPregnancy(row rowScanner) (breeding.Pregnancy, error) {
	var (
		p                 breeding.Pregnancy
		confirmed, lastUS breeding.Date
		estimated         sql.NullInt64
	)
	dest := []any{&p.ID, &p.SowID, &p.ServiceID, &p.ConceptionDate, &p.ExpectedFarrowingDate, &p.Confirmed,
		&confirmed, &p.ConfirmationMethod, &p.Status, &p.UltrasoundCount, &lastUS,
		&estimated, &p.Notes}
	if err := row.Scan(append(dest, auditDest(&p.Audit)...)...); err != nil {
		return p, err
	}
	p.ConfirmationDate, p.LastUltrasoundDate, p.EstimatedPiglets = datePtr(confirmed), datePtr(lastUS), intPtr(estimated)
	return p, nil
}

func (r *repo) GetPregnancy(ctx context.Context, id int64) (*breeding.Pregnancy, error) {
	return getOne(ctx, r, "pregnancy", id, `SELECT `+pregnancyColumns+` FROM pregnancies WHERE id = ?`, scanPregnancy)
}

func (r *repo) ListPregnancies(ctx context.Context, f breeding.PregnancyFilter) ([]breeding.Pregnancy, error) {
	var w where
	if f.SowID != 0 {
		w.add("sow_id = ?", f.SowID)
	}
	if f.ServiceID != 0 {
		w.add("service_id = ?", f.ServiceID)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.Confirmed != nil {
		w.add("confirmed = ?", *f.Confirmed)
	}
	if f.FarrowingFrom != nil {
		w.add("expected_farrowing_date >= ?", f.FarrowingFrom.String())
	}
	if f.FarrowingTo != nil {
		w.add("expected_farrowing_date <= ?", f.FarrowingTo.String())
	}
	if f.ConceivedBefore != nil {
		w.add("conception_date < ?", f.ConceivedBefore.String())
	}
	query := `SELECT ` + pregnancyColumns + ` FROM pregnancies` + w.String() +
		` ORDER BY conception_date DESC, id DESC` + limitClause(f.Limit)
	return list(ctx, r, "pregnancies", query, w.args, scanPregnancy)
}

func pregnancyArgs(p *breeding.Pregnancy) []any {
	return []any{p.SowID, p.ServiceID, p.ConceptionDate.String(), p.ExpectedFarrowingDate.String(), p.Confirmed,
		optDate(p.ConfirmationDate), string(p.ConfirmationMethod), string(p.Status), p.UltrasoundCount,
		optDate(p.LastUltrasoundDate), optInt(p.EstimatedPiglets), p.Notes}
}

func (r *repo) CreatePregnancy(ctx context.Context, p *breeding.Pregnancy) error {
	id, err := r.insert(ctx, `
		INSERT INTO pregnancies (sow_id, service_id, conception_date, expected_farrowing_date, confirmed,
			confirmation_date, confirmation_method, status, ultrasound_count, last_ultrasound_date,
			estimated_piglets, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(p.Audit, pregnancyArgs(p)...)...)
	if err != nil {
		return r.writeErr(err, "pregnancy", "", "")
	}
	p.ID = id
	return nil
}

func (r *repo) UpdatePregnancy(ctx context.Context, p *breeding.Pregnancy) error {
	return r.affectOne(ctx, "pregnancy", p.ID, `
		UPDATE pregnancies SET sow_id = ?, service_id = ?, conception_date = ?, expected_farrowing_date = ?,
			confirmed = ?, confirmation_date = ?, confirmation_method = ?, status = ?, ultrasound_count = ?,
			last_ultrasound_date = ?, estimated_piglets = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		append(pregnancyArgs(p), p.UpdatedBy, p.UpdatedAt.UTC(), p.ID)...)
}

func (r *repo) DeletePregnancy(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "pregnancy", id, `DELETE FROM pregnancies WHERE id = ?`, id)
}

// =============================================================================
// BIRTHS
// =============================================================================

const birthColumns = `id, sow_id, pregnancy_id, boar_id, birth_date, gestation_days, birth_type,
	total_born, born_alive, born_dead, mummified, malformed, total_litter_weight, avg_piglet_weight,
	expected_weaning_date, weaned_on, notes, ` + auditColumns

// nursingPredicate matches breeding.BirthFilter.Nursing.
const nursingPredicate = `born_alive > 0 AND weaned_on IS NULL AND (
	NOT EXISTS (SELECT 1 FROM piglets p WHERE p.birth_id = births.id)
	OR EXISTS (SELECT 1 FROM piglets p WHERE p.birth_id = births.id AND p.current_status = 'lactating'))`

func scanBirth(row rowScanner) (breeding.Birth, error) {
	var (
		b              breeding.Birth
		boar           sql.NullInt64
		expected, done breeding.Date
	)
	dest := []any{&b.ID, &b.SowID, &b.PregnancyID, &boar, &b.BirthDate, &b.GestationDays, &b.BirthType,
		&b.TotalBorn, &b.BornAlive, &b.BornDead, &b.Mummified, &b.Malformed, &b.TotalLitterWeight, &b.AvgPigletWeight,
		&expected, &done, &b.Notes}
	if err := row.Scan(append(dest, auditDest(&b.Audit)...)...); err != nil {
		return b, err
	}
	b.BoarID, b.ExpectedWeaningDate, b.WeanedOn = idPtr(boar), datePtr(expected), datePtr(done)
	return b, nil
}

func (r *repo) GetBirth(ctx context.Context, id int64) (*breeding.Birth, error) {
	return getOne(ctx, r, "birth", id, `SELECT `+birthColumns+` FROM births WHERE id = ?`, scanBirth)
}

func (r *repo) ListBirths(ctx context.Context, f breeding.BirthFilter) ([]breeding.Birth, error) {
	var w where
	if f.SowID != 0 {
		w.add("sow_id = ?", f.SowID)
	}
	if f.PregnancyID != 0 {
		w.add("pregnancy_id = ?", f.PregnancyID)
	}
	if f.WeaningDueBy != nil {
		w.add("expected_weaning_date <= ?", f.WeaningDueBy.String())
	}
	if f.Nursing {
		w.add(nursingPredicate)
	}
	query := `SELECT ` + birthColumns + ` FROM births` + w.String() +
		` ORDER BY birth_date DESC, id DESC` + limitClause(f.Limit)
	return list(ctx, r, "births", query, w.args, scanBirth)
}

func birthArgs(b *breeding.Birth) []any {
	return []any{b.SowID, b.PregnancyID, optID(b.BoarID), b.BirthDate.String(), b.GestationDays, string(b.BirthType),
		b.TotalBorn, b.BornAlive, b.BornDead, b.Mummified, b.Malformed, b.TotalLitterWeight, b.AvgPigletWeight,
		optDate(b.ExpectedWeaningDate), optDate(b.WeanedOn), b.Notes}
}

func (r *repo) CreateBirth(ctx context.Context, b *breeding.Birth) error {
	id, err := r.insert(ctx, `
		INSERT INTO births (sow_id, pregnancy_id, boar_id, birth_date, gestation_days, birth_type,
			total_born, born_alive, born_dead, mummified, malformed, total_litter_weight, avg_piglet_weight,
			expected_weaning_date, weaned_on, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(b.Audit, birthArgs(b)...)...)
	if err != nil {
		return r.writeErr(err, "birth", "", "")
	}
	b.ID = id
	return nil
}

func (r *repo) UpdateBirth(ctx context.Context, b *breeding.Birth) error {
	return r.affectOne(ctx, "birth", b.ID, `
		UPDATE births SET sow_id = ?, pregnancy_id = ?, boar_id = ?, birth_date = ?, gestation_days = ?,
			birth_type = ?, total_born = ?, born_alive = ?, born_dead = ?, mummified = ?, malformed = ?,
			total_litter_weight = ?, avg_piglet_weight = ?, expected_weaning_date = ?, weaned_on = ?,
			notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		append(birthArgs(b), b.UpdatedBy, b.UpdatedAt.UTC(), b.ID)...)
}

func (r *repo) DeleteBirth(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "birth", id, `DELETE FROM births WHERE id = ?`, id)
}

// =============================================================================
// ABORTIONS
// =============================================================================

const abortionColumns = `id, sow_id, pregnancy_id, abortion_date, gestation_days, fetuses_expelled,
	probable_cause, notes, ` + auditColumns

func scanAbortion(row rowScanner) (breeding.Abortion, error) {
	var (
		a       breeding.Abortion
		fetuses sql.NullInt64
	)
	dest := []any{&a.ID, &a.SowID, &a.PregnancyID, &a.AbortionDate, &a.GestationDays, &fetuses,
		&a.ProbableCause, &a.Notes}
	if err := row.Scan(append(dest, auditDest(&a.Audit)...)...); err != nil {
		return a, err
	}
	a.FetusesExpelled = intPtr(fetuses)
	return a, nil
}

func (r *repo) GetAbortion(ctx context.Context, id int64) (*breeding.Abortion, error) {
	return getOne(ctx, r, "abortion", id, `SELECT `+abortionColumns+` FROM abortions WHERE id = ?`, scanAbortion)
}

func (r *repo) ListAbortions(ctx context.Context, f breeding.AbortionFilter) ([]breeding.Abortion, error) {
	var w where
	if f.SowID != 0 {
		w.add("sow_id = ?", f.SowID)
	}
	if f.PregnancyID != 0 {
		w.add("pregnancy_id = ?", f.PregnancyID)
	}
	query := `SELECT ` + abortionColumns + ` FROM abortions` + w.String() +
		` ORDER BY abortion_date DESC, id DESC` + limitClause(f.Limit)
	return list(ctx, r, "abortions", query, w.args, scanAbortion)
}

func abortionArgs(a *breeding.Abortion) []any {
	return []any{a.SowID, a.PregnancyID, a.AbortionDate.String(), a.GestationDays, optInt(a.FetusesExpelled),
		a.ProbableCause, a.Notes}
}

func (r *repo) CreateAbortion(ctx context.Context, a *breeding.Abortion) error {
	id, err := r.insert(ctx, `
		INSERT INTO abortions (sow_id, pregnancy_id, abortion_date, gestation_days, fetuses_expelled,
			probable_cause, notes, `+auditColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		withAudit(a.Audit, abortionArgs(a)...)...)
	if err != nil {
		return r.writeErr(err, "abortion", "", "")
	}
	a.ID = id
	return nil
}

func (r *repo) UpdateAbortion(ctx context.Context, a *breeding.Abortion) error {
	return r.affectOne(ctx, "abortion", a.ID, `
		UPDATE abortions SET sow_id = ?, pregnancy_id = ?, abortion_date = ?, gestation_days = ?,
			fetuses_expelled = ?, probable_cause = ?, notes = ?, updated_by = ?, updated_at = ?
		WHERE id = ?`,
		append(abortionArgs(a), a.UpdatedBy, a.UpdatedAt.UTC(), a.ID)...)
}

func (r *repo) DeleteAbortion(ctx context.Context, id int64) error {
	return r.affectOne(ctx, "abortion", id, `DELETE FROM abortions WHERE id = ?`, id)
}
