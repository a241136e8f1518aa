package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/pod-kiosk/internal/model"
)

// MenuRepo reads a location's menu.  Steps, sections and items carry a
// default label; menu_translations may override it per locale, and a
// locale without a translation falls back to the default.
type MenuRepo struct {
	db         *sql.DB
	locationID string
}

func NewMenuRepo(db *sql.DB, locationID string) *MenuRepo {
	return &MenuRepo{db: db, locationID: locationID}
}

// FetchMenu returns the ordered steps of the location's menu in locale.
// Inactive items are left out; a section whose items are all inactive is
// still returned so required sections stay visible.
func (r *MenuRepo) FetchMenu(ctx context.Context, locale string) ([]model.Step, error) {
	steps, err := r.steps(ctx, locale)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, ErrNotFound
	}
	stepAt := make(map[string]int, len(steps))
	for i, s := range steps {
		stepAt[s.ID] = i
	}

	sections, err := r.sections(ctx, locale)
	if err != nil {
		return nil, err
	}
	type loc struct{ step, sec int }
	sectionAt := map[string]loc{}
	for _, sr := range sections {
		si, ok := stepAt[sr.stepID]
		if !ok {
			continue
		}
		steps[si].Sections = append(steps[si].Sections, sr.section)
		sectionAt[sr.section.ID] = loc{si, len(steps[si].Sections) - 1}
	}

	items, err := r.items(ctx, locale)
	if err != nil {
		return nil, err
	}
	for _, ir := range items {
		l, ok := sectionAt[ir.sectionID]
		if !ok {
			continue
		}
		sec := &steps[l.step].Sections[l.sec]
		ir.item.Mode = sec.Mode
		sec.Items = append(sec.Items, ir.item)
	}
	return steps, nil
}

func (r *MenuRepo) steps(ctx context.Context, locale string) ([]model.Step, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT st.id, COALESCE(t.label, st.title)
		 FROM menu_steps st
		 LEFT JOIN menu_translations t ON t.ref_id = st.id AND t.locale = ?
		 WHERE st.location_id = ?
		 ORDER BY st.position`,
		locale, r.locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Step
	for rows.Next() {
		var s model.Step
		if err := rows.Scan(&s.ID, &s.Title); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type sectionRow struct {
	stepID  string
	section model.Section
}

func (r *MenuRepo) sections(ctx context.Context, locale string) ([]sectionRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT se.id, se.step_id, COALESCE(t.label, se.title), se.selection_mode, se.required,
		        se.max_quantity, se.slider_min, se.slider_max, se.slider_labels
		 FROM menu_sections se
		 JOIN menu_steps st ON st.id = se.step_id
		 LEFT JOIN menu_translations t ON t.ref_id = se.id AND t.locale = ?
		 WHERE st.location_id = ?
		 ORDER BY se.position`,
		locale, r.locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sectionRow
	for rows.Next() {
		var (
			sr         sectionRow
			min, max   sql.NullInt64
			labelsJSON sql.NullString
		)
		sec := &sr.section
		if err := rows.Scan(&sec.ID, &sr.stepID, &sec.Title, &sec.Mode, &sec.Required,
			&sec.MaxQuantity, &min, &max, &labelsJSON); err != nil {
			return nil, err
		}
		if sec.Mode == model.ModeSlider {
			cfg := &model.SliderConfig{Min: int(min.Int64), Max: int(max.Int64)}
			if labelsJSON.Valid && labelsJSON.String != "" {
				if err := json.Unmarshal([]byte(labelsJSON.String), &cfg.Labels); err != nil {
					return nil, fmt.Errorf("section %s slider labels: %w", sec.ID, err)
				}
			}
			sec.Slider = cfg
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

type itemRow struct {
	sectionID string
	item      model.MenuItem
}

func (r *MenuRepo) items(ctx context.Context, locale string) ([]itemRow, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT i.id, i.section_id, COALESCE(t.label, i.name), i.base_price_cents,
		        i.additional_price_cents, i.included_quantity
		 FROM menu_items i
		 JOIN menu_sections se ON se.id = i.section_id
		 JOIN menu_steps st ON st.id = se.step_id
		 LEFT JOIN menu_translations t ON t.ref_id = i.id AND t.locale = ?
		 WHERE st.location_id = ? AND i.is_active = 1
		 ORDER BY i.position`,
		locale, r.locationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []itemRow
	for rows.Next() {
		var ir itemRow
		it := &ir.item
		if err := rows.Scan(&it.ID, &ir.sectionID, &it.Name, &it.BasePriceCents,
			&it.AdditionalPriceCents, &it.IncludedQuantity); err != nil {
			return nil, err
		}
		out = append(out, ir)
	}
	return out, rows.Err()
}
