package sqlstore

import "strings"

// schemaTemplate is valid SQL for both SQLite and PostgreSQL once the
// {{...}} column types are substituted.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS sows (
	id {{ID}},
	ear_tag TEXT NOT NULL,
	alias TEXT NOT NULL DEFAULT '',
	breed TEXT NOT NULL DEFAULT '',
	farm_name TEXT NOT NULL DEFAULT '',
	birth_date {{DATE}},
	entry_date {{DATE}},
	status TEXT NOT NULL DEFAULT 'active',
	reproductive_status TEXT NOT NULL DEFAULT 'empty',
	expected_farrowing_date {{DATE}},
	last_service_date {{DATE}},
	last_weaning_date {{DATE}},
	parity_count INTEGER NOT NULL DEFAULT 0,
	total_piglets_born INTEGER NOT NULL DEFAULT 0,
	total_piglets_alive INTEGER NOT NULL DEFAULT 0,
	total_piglets_dead INTEGER NOT NULL DEFAULT 0,
	total_abortions INTEGER NOT NULL DEFAULT 0,
	current_weight {{DECIMAL}},
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_sows_ear_tag ON sows (lower(ear_tag));
CREATE INDEX IF NOT EXISTS idx_sows_status ON sows (status, reproductive_status);

CREATE TABLE IF NOT EXISTS boars (
	id {{ID}},
	ear_tag TEXT NOT NULL,
	name TEXT NOT NULL DEFAULT '',
	breed TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_boars_ear_tag ON boars (lower(ear_tag));

CREATE TABLE IF NOT EXISTS heats (
	id {{ID}},
	sow_id BIGINT NOT NULL REFERENCES sows(id),
	heat_date {{DATE}} NOT NULL,
	heat_end_date {{DATE}},
	intensity TEXT NOT NULL DEFAULT '',
	induced {{BOOL}} NOT NULL DEFAULT FALSE,
	induction_protocol TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'detected',
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_heats_sow ON heats (sow_id, heat_date);
CREATE INDEX IF NOT EXISTS idx_heats_status ON heats (status);

CREATE TABLE IF NOT EXISTS services (
	id {{ID}},
	sow_id BIGINT NOT NULL REFERENCES sows(id),
	heat_id BIGINT NOT NULL REFERENCES heats(id),
	boar_id BIGINT REFERENCES boars(id),
	service_date {{DATE}} NOT NULL,
	service_number INTEGER NOT NULL DEFAULT 1,
	service_type TEXT NOT NULL,
	mating_duration_minutes INTEGER,
	mating_quality TEXT NOT NULL DEFAULT '',
	insemination_type TEXT NOT NULL DEFAULT '',
	semen_dose_code TEXT NOT NULL DEFAULT '',
	semen_volume_ml {{DECIMAL}},
	semen_concentration {{DECIMAL}},
	technician_name TEXT NOT NULL DEFAULT '',
	success {{BOOL}},
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_services_sow ON services (sow_id, service_date);
CREATE INDEX IF NOT EXISTS idx_services_heat ON services (heat_id);

CREATE TABLE IF NOT EXISTS pregnancies (
	id {{ID}},
	sow_id BIGINT NOT NULL REFERENCES sows(id),
	service_id BIGINT NOT NULL REFERENCES services(id),
	conception_date {{DATE}} NOT NULL,
	expected_farrowing_date {{DATE}} NOT NULL,
	confirmed {{BOOL}} NOT NULL DEFAULT FALSE,
	confirmation_date {{DATE}},
	confirmation_method TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'in-progress',
	ultrasound_count INTEGER NOT NULL DEFAULT 0,
	last_ultrasound_date {{DATE}},
	estimated_piglets INTEGER,
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_pregnancies_sow ON pregnancies (sow_id, status);
CREATE INDEX IF NOT EXISTS idx_pregnancies_farrowing ON pregnancies (expected_farrowing_date);

CREATE TABLE IF NOT EXISTS births (
	id {{ID}},
	sow_id BIGINT NOT NULL REFERENCES sows(id),
	pregnancy_id BIGINT NOT NULL REFERENCES pregnancies(id),
	boar_id BIGINT REFERENCES boars(id),
	birth_date {{DATE}} NOT NULL,
	gestation_days INTEGER NOT NULL,
	birth_type TEXT NOT NULL DEFAULT 'normal',
	total_born INTEGER NOT NULL DEFAULT 0,
	born_alive INTEGER NOT NULL DEFAULT 0,
	born_dead INTEGER NOT NULL DEFAULT 0,
	mummified INTEGER NOT NULL DEFAULT 0,
	malformed INTEGER NOT NULL DEFAULT 0,
	total_litter_weight {{DECIMAL}},
	avg_piglet_weight {{DECIMAL}},
	expected_weaning_date {{DATE}},
	weaned_on {{DATE}},
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_births_sow ON births (sow_id, birth_date);
CREATE INDEX IF NOT EXISTS idx_births_weaning ON births (expected_weaning_date);

CREATE TABLE IF NOT EXISTS abortions (
	id {{ID}},
	sow_id BIGINT NOT NULL REFERENCES sows(id),
	pregnancy_id BIGINT NOT NULL REFERENCES pregnancies(id),
	abortion_date {{DATE}} NOT NULL,
	gestation_days INTEGER NOT NULL,
	fetuses_expelled INTEGER,
	probable_cause TEXT NOT NULL DEFAULT '',
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_abortions_sow ON abortions (sow_id, abortion_date);

CREATE TABLE IF NOT EXISTS piglets (
	id {{ID}},
	birth_id BIGINT NOT NULL REFERENCES births(id),
	sow_id BIGINT NOT NULL REFERENCES sows(id),
	ear_tag TEXT,
	sex TEXT NOT NULL DEFAULT '',
	birth_order INTEGER,
	birth_weight {{DECIMAL}},
	birth_status TEXT NOT NULL DEFAULT 'alive',
	current_status TEXT NOT NULL DEFAULT 'lactating',
	weaning_date {{DATE}},
	weaning_weight {{DECIMAL}},
	notes TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS ux_piglets_ear_tag ON piglets (lower(ear_tag)) WHERE ear_tag IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_piglets_birth ON piglets (birth_id, current_status);

CREATE TABLE IF NOT EXISTS calendar_events (
	id {{ID}},
	title TEXT NOT NULL,
	event_date {{TIMESTAMP}} NOT NULL,
	event_type TEXT NOT NULL DEFAULT 'custom',
	description TEXT NOT NULL DEFAULT '',
	created_by TEXT NOT NULL DEFAULT '',
	updated_by TEXT NOT NULL DEFAULT '',
	created_at {{TIMESTAMP}} NOT NULL,
	updated_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calendar_events_date ON calendar_events (event_date);

CREATE TABLE IF NOT EXISTS notifications (
	id {{ID}},
	type TEXT NOT NULL,
	priority TEXT NOT NULL DEFAULT 'normal',
	title TEXT NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	reference_type TEXT NOT NULL DEFAULT '',
	reference_id BIGINT NOT NULL DEFAULT 0,
	action_url TEXT NOT NULL DEFAULT '',
	is_read {{BOOL}} NOT NULL DEFAULT FALSE,
	read_at {{TIMESTAMP}},
	expires_at {{TIMESTAMP}},
	created_at {{TIMESTAMP}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notifications_reference ON notifications (type, reference_type, reference_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_unread ON notifications (is_read, created_at);
`

func (d *Dialect) schema() string {
	return strings.NewReplacer(
		"{{ID}}", d.Types.ID,
		"{{DATE}}", d.Types.Date,
		"{{TIMESTAMP}}", d.Types.Timestamp,
		"{{BOOL}}", d.Types.Bool,
		"{{DECIMAL}}", d.Types.Decimal,
	).Replace(schemaTemplate)
}
