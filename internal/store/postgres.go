package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const pilotColumns = `short_code, name, airframes, seat, seniority, role, upgrade_track,
	special_days_since, special_last_landing,
	night_landings_90, night_hours_90, last_night_landing,
	duty_days_14, weekend_duty_30, maxed_out,
	created_at, updated_at`

func (s *PostgresStore) UpsertPilot(ctx context.Context, p *Pilot) error {
	daysJSON, _ := json.Marshal(p.SpecialDaysSince)
	landingJSON, _ := json.Marshal(p.SpecialLastLanding)

	return s.pool.QueryRow(ctx, `
		INSERT INTO crew_pilots (short_code, name, airframes, seat, seniority, role, upgrade_track,
			special_days_since, special_last_landing,
			night_landings_90, night_hours_90, last_night_landing,
			duty_days_14, weekend_duty_30, maxed_out)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (short_code) DO UPDATE SET
			name = EXCLUDED.name, airframes = EXCLUDED.airframes, seat = EXCLUDED.seat,
			seniority = EXCLUDED.seniority, role = EXCLUDED.role, upgrade_track = EXCLUDED.upgrade_track,
			special_days_since = EXCLUDED.special_days_since,
			special_last_landing = EXCLUDED.special_last_landing,
			night_landings_90 = EXCLUDED.night_landings_90,
			night_hours_90 = EXCLUDED.night_hours_90,
			last_night_landing = EXCLUDED.last_night_landing,
			duty_days_14 = EXCLUDED.duty_days_14,
			weekend_duty_30 = EXCLUDED.weekend_duty_30,
			maxed_out = EXCLUDED.maxed_out,
			updated_at = now()
		RETURNING created_at, updated_at`,
		p.ShortCode, p.Name, p.Airframes, p.Seat, p.Seniority, p.Role, p.UpgradeTrack,
		daysJSON, landingJSON,
		p.NightLandings90, p.NightHours90, p.LastNightLanding,
		p.DutyDays14, p.WeekendDuty30, p.MaxedOut,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
}

func (s *PostgresStore) ListPilots(ctx context.Context) ([]*Pilot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pilotColumns+`
		FROM crew_pilots ORDER BY seniority DESC, short_code ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pilots []*Pilot
	for rows.Next() {
		p := &Pilot{}
		var role sql.NullString
		var daysJSON, landingJSON []byte
		if err := rows.Scan(
			&p.ShortCode, &p.Name, &p.Airframes, &p.Seat, &p.Seniority, &role, &p.UpgradeTrack,
			&daysJSON, &landingJSON,
			&p.NightLandings90, &p.NightHours90, &p.LastNightLanding,
			&p.DutyDays14, &p.WeekendDuty30, &p.MaxedOut,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if role.Valid {
			p.Role = role.String
		}
		if daysJSON != nil {
			_ = json.Unmarshal(daysJSON, &p.SpecialDaysSince)
		}
		if landingJSON != nil {
			_ = json.Unmarshal(landingJSON, &p.SpecialLastLanding)
		}
		pilots = append(pilots, p)
	}
	return pilots, rows.Err()
}

const tripColumns = `id, airframe, tail, route, special,
	window_start, window_end, tafb_hours, tafb_days, legs,
	assigned_pic, assigned_sic, created_at, updated_at`

func (s *PostgresStore) CreateTrip(ctx context.Context, t *Trip) error {
	legsJSON, _ := json.Marshal(t.Legs)

	return s.pool.QueryRow(ctx, `
		INSERT INTO crew_trips (id, airframe, tail, route, special,
			window_start, window_end, tafb_hours, tafb_days, legs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`,
		t.ID, t.Airframe, t.Tail, t.Route, nullIfEmpty(t.Special),
		t.WindowStart, t.WindowEnd, t.TAFBHours, t.TAFBDays, legsJSON,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
}

func (s *PostgresStore) GetTrip(ctx context.Context, id string) (*Trip, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+tripColumns+`
		FROM crew_trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *PostgresStore) ListTrips(ctx context.Context, filter TripFilter) ([]*Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM crew_trips WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Unassigned != nil {
		if *filter.Unassigned {
			query += " AND assigned_pic IS NULL AND assigned_sic IS NULL"
		} else {
			query += " AND (assigned_pic IS NOT NULL OR assigned_sic IS NOT NULL)"
		}
	}
	if filter.Airframe != "" {
		n++
		query += fmt.Sprintf(" AND airframe = $%d", n)
		args = append(args, filter.Airframe)
	}

	query += " ORDER BY window_start ASC NULLS LAST, id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

// AssignTrip claims both seats in one statement; the WHERE clause makes the
// claim atomic so two concurrent dispatchers cannot both win.
func (s *PostgresStore) AssignTrip(ctx context.Context, tripID, picShort, sicShort string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE crew_trips
		SET assigned_pic = $2, assigned_sic = $3, updated_at = now()
		WHERE id = $1 AND assigned_pic IS NULL AND assigned_sic IS NULL`,
		tripID, picShort, sicShort)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) GetPairingHistory(ctx context.Context) (PairingHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT pilot_a, pilot_b, last_paired_at, count_90
		FROM crew_pairing_history`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	history := PairingHistory{}
	now := time.Now()
	for rows.Next() {
		var a, b string
		var lastPaired time.Time
		var count int
		if err := rows.Scan(&a, &b, &lastPaired, &count); err != nil {
			return nil, err
		}
		days := int(now.Sub(lastPaired).Hours() / 24)
		if days > 90 {
			// The stored count covers a window that has fully aged out.
			count = 0
		}
		history[NewPairKey(a, b)] = PairingStat{
			DaysSinceLast: days,
			Count90:       count,
		}
	}
	return history, rows.Err()
}

func (s *PostgresStore) BumpPairing(ctx context.Context, key PairKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crew_pairing_history (pilot_a, pilot_b, last_paired_at, count_90)
		VALUES ($1, $2, now(), 1)
		ON CONFLICT (pilot_a, pilot_b) DO UPDATE SET
			last_paired_at = now(),
			count_90 = CASE
				WHEN crew_pairing_history.last_paired_at < now() - interval '90 days' THEN 1
				ELSE crew_pairing_history.count_90 + 1
			END`,
		key.A, key.B)
	return err
}

func (s *PostgresStore) GetDutyStats(ctx context.Context) (*DutyStats, error) {
	stats := &DutyStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT avg_duty_days_14, avg_weekend_duty_30
		FROM crew_duty_stats ORDER BY updated_at DESC LIMIT 1`,
	).Scan(&stats.AvgDutyDays14, &stats.AvgWeekendDuty30)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *PostgresStore) CreateAssignmentRecord(ctx context.Context, rec *AssignmentRecord) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO crew_assignment_records (trip_id, route, window_label,
			assigned_pic, assigned_sic, pic_short, sic_short,
			pairing_score, safety_alerts, night_currency_ok, rationale,
			dispatcher_notes, dispatcher_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at`,
		rec.TripID, rec.Route, rec.Window,
		rec.PIC, rec.SIC, rec.PICShort, rec.SICShort,
		rec.PairingScore, rec.SafetyAlerts, rec.NightCurrencyOK, rec.Rationale,
		rec.DispatcherNotes, rec.DispatcherName,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (s *PostgresStore) ListAssignmentRecords(ctx context.Context, limit, offset int) ([]*AssignmentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, trip_id, route, window_label,
			assigned_pic, assigned_sic, pic_short, sic_short,
			pairing_score, safety_alerts, night_currency_ok, rationale,
			dispatcher_notes, dispatcher_name, created_at
		FROM crew_assignment_records
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*AssignmentRecord
	for rows.Next() {
		rec := &AssignmentRecord{}
		var window, notes sql.NullString
		if err := rows.Scan(
			&rec.ID, &rec.TripID, &rec.Route, &window,
			&rec.PIC, &rec.SIC, &rec.PICShort, &rec.SICShort,
			&rec.PairingScore, &rec.SafetyAlerts, &rec.NightCurrencyOK, &rec.Rationale,
			&notes, &rec.DispatcherName, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if window.Valid {
			rec.Window = window.String
		}
		if notes.Valid {
			rec.DispatcherNotes = notes.String
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM crew_pilots),
			(SELECT COUNT(*) FROM crew_trips),
			(SELECT COUNT(*) FROM crew_trips WHERE assigned_pic IS NULL AND assigned_sic IS NULL),
			(SELECT COUNT(*) FROM crew_assignment_records)`,
	).Scan(&stats.TotalPilots, &stats.TotalTrips, &stats.UnassignedTrips, &stats.AssignmentRecords)
	return stats, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTrip(row rowScanner) (*Trip, error) {
	t := &Trip{}
	var tail, special sql.NullString
	var legsJSON []byte
	if err := row.Scan(
		&t.ID, &t.Airframe, &tail, &t.Route, &special,
		&t.WindowStart, &t.WindowEnd, &t.TAFBHours, &t.TAFBDays, &legsJSON,
		&t.AssignedPIC, &t.AssignedSIC, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if tail.Valid {
		t.Tail = tail.String
	}
	if special.Valid {
		t.Special = special.String
	}
	if legsJSON != nil {
		_ = json.Unmarshal(legsJSON, &t.Legs)
	}
	return t, nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
