package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/domain/recurring"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const recurringColumns = `id, user_id, client_id, currency, frequency, status, next_run_at, last_run_at,
	end_date, due_days, auto_send, discount_type, discount_value, tax_rate, notes, tags,
	created_at, updated_at, created_by, updated_by`

var recurringSortColumns = map[string]string{
	"created_at":  "created_at",
	"next_run_at": "next_run_at",
}

type recurringRow struct {
	ID            string              `db:"id"`
	ClientID      string              `db:"client_id"`
	Currency      string              `db:"currency"`
	Frequency     string              `db:"frequency"`
	Status        string              `db:"status"`
	NextRunAt     time.Time           `db:"next_run_at"`
	LastRunAt     *time.Time          `db:"last_run_at"`
	EndDate       *time.Time          `db:"end_date"`
	DueDays       int                 `db:"due_days"`
	AutoSend      bool                `db:"auto_send"`
	DiscountType  sql.NullString      `db:"discount_type"`
	DiscountValue decimal.NullDecimal `db:"discount_value"`
	TaxRate       decimal.Decimal     `db:"tax_rate"`
	Notes         string              `db:"notes"`
	Tags          pq.StringArray      `db:"tags"`
	types.BaseModel
}

func newRecurringRow(r *recurring.RecurringInvoice) *recurringRow {
	row := &recurringRow{
		ID:        r.ID,
		ClientID:  r.ClientID,
		Currency:  r.Currency,
		Frequency: string(r.Frequency),
		Status:    string(r.Status),
		NextRunAt: r.NextRunAt,
		LastRunAt: r.LastRunAt,
		EndDate:   r.EndDate,
		DueDays:   r.DueDays,
		AutoSend:  r.AutoSend,
		TaxRate:   r.TaxRate,
		Notes:     r.Notes,
		Tags:      pq.StringArray(lo.Ternary(r.Tags == nil, []string{}, r.Tags)),
		BaseModel: r.BaseModel,
	}
	if r.Discount != nil {
		row.DiscountType = sql.NullString{String: string(r.Discount.Type), Valid: true}
		row.DiscountValue = decimal.NullDecimal{Decimal: r.Discount.Value, Valid: true}
	}
	return row
}

func (row *recurringRow) toDomain() *recurring.RecurringInvoice {
	r := &recurring.RecurringInvoice{
		ID:        row.ID,
		ClientID:  row.ClientID,
		Currency:  row.Currency,
		Frequency: types.RecurringFrequency(row.Frequency),
		Status:    types.RecurringStatus(row.Status),
		NextRunAt: row.NextRunAt,
		LastRunAt: row.LastRunAt,
		EndDate:   row.EndDate,
		DueDays:   row.DueDays,
		AutoSend:  row.AutoSend,
		TaxRate:   row.TaxRate,
		Notes:     row.Notes,
		Tags:      []string(row.Tags),
		BaseModel: row.BaseModel,
	}
	if row.DiscountType.Valid {
		r.Discount = &invoice.Discount{
			Type:  types.DiscountType(row.DiscountType.String),
			Value: row.DiscountValue.Decimal,
		}
	}
	return r
}

type recurringInvoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewRecurringInvoiceRepository(db *postgres.DB, logger *logger.Logger) recurring.Repository {
	return &recurringInvoiceRepository{db: db, logger: logger}
}

func (r *recurringInvoiceRepository) Create(ctx context.Context, tmpl *recurring.RecurringInvoice) error {
	query := `
		INSERT INTO recurring_invoices (` + recurringColumns + `) VALUES (
			:id, :user_id, :client_id, :currency, :frequency, :status, :next_run_at, :last_run_at,
			:end_date, :due_days, :auto_send, :discount_type, :discount_value, :tax_rate, :notes, :tags,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating recurring invoice",
		"recurring_invoice_id", tmpl.ID,
		"frequency", tmpl.Frequency,
	)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.NamedExecContext(ctx, query, newRecurringRow(tmpl)); err != nil {
			return dbError(err, "failed to create recurring invoice")
		}
		return r.insertItems(ctx, tmpl)
	})
}

func (r *recurringInvoiceRepository) Get(ctx context.Context, id string) (*recurring.RecurringInvoice, error) {
	var row recurringRow
	query := `SELECT ` + recurringColumns + ` FROM recurring_invoices WHERE id = $1 AND user_id = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.GetUserID(ctx)); err != nil {
		return nil, notFoundOr(err, "Recurring invoice", id)
	}
	return r.withItems(ctx, row.toDomain())
}

func (r *recurringInvoiceRepository) Update(ctx context.Context, tmpl *recurring.RecurringInvoice) error {
	query := `
		UPDATE recurring_invoices SET
			client_id = :client_id,
			currency = :currency,
			frequency = :frequency,
			status = :status,
			next_run_at = :next_run_at,
			last_run_at = :last_run_at,
			end_date = :end_date,
			due_days = :due_days,
			auto_send = :auto_send,
			discount_type = :discount_type,
			discount_value = :discount_value,
			tax_rate = :tax_rate,
			notes = :notes,
			tags = :tags,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND user_id = :user_id`

	result, err := r.db.NamedExecContext(ctx, query, newRecurringRow(tmpl))
	if err != nil {
		return dbError(err, "failed to update recurring invoice")
	}
	return requireAffected(result, "Recurring invoice", tmpl.ID)
}

func (r *recurringInvoiceRepository) ReplaceItems(ctx context.Context, tmpl *recurring.RecurringInvoice) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		var owned bool
		if err := q.GetContext(ctx, &owned, `SELECT EXISTS (SELECT 1 FROM recurring_invoices WHERE id = $1 AND user_id = $2)`,
			tmpl.ID, types.GetUserID(ctx)); err != nil {
			return dbError(err, "failed to check recurring invoice ownership")
		}
		if !owned {
			return notFoundOr(sql.ErrNoRows, "Recurring invoice", tmpl.ID)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM recurring_invoice_items WHERE recurring_invoice_id = $1`, tmpl.ID); err != nil {
			return dbError(err, "failed to delete recurring invoice items")
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM recurring_invoice_groups WHERE recurring_invoice_id = $1`, tmpl.ID); err != nil {
			return dbError(err, "failed to delete recurring invoice groups")
		}
		return r.insertItems(ctx, tmpl)
	})
}

func (r *recurringInvoiceRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM recurring_invoices WHERE id = $1 AND user_id = $2`, id, types.GetUserID(ctx))
	if err != nil {
		return dbError(err, "failed to delete recurring invoice")
	}
	return requireAffected(result, "Recurring invoice", id)
}

func (r *recurringInvoiceRepository) List(ctx context.Context, filter *types.RecurringInvoiceFilter) ([]*recurring.RecurringInvoice, error) {
	if filter == nil {
		filter = types.NewRecurringInvoiceFilter()
	}
	qf := filter.QueryFilter
	if qf == nil {
		qf = types.NewDefaultQueryFilter()
	}

	w := r.buildWhere(ctx, filter)
	query := `SELECT ` + recurringColumns + ` FROM recurring_invoices` + w.String() +
		w.page(sortColumn(qf.GetSort(), recurringSortColumns), qf.GetOrder(),
			filter.GetLimit(), filter.GetOffset(), filter.IsUnlimited())

	var rows []recurringRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, dbError(err, "failed to list recurring invoices")
	}
	return lo.Map(rows, func(row recurringRow, _ int) *recurring.RecurringInvoice {
		return row.toDomain()
	}), nil
}

func (r *recurringInvoiceRepository) Count(ctx context.Context, filter *types.RecurringInvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewRecurringInvoiceFilter()
	}
	w := r.buildWhere(ctx, filter)

	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM recurring_invoices`+w.String(), w.args...); err != nil {
		return 0, dbError(err, "failed to count recurring invoices")
	}
	return count, nil
}

func (r *recurringInvoiceRepository) ListDue(ctx context.Context, now time.Time) ([]*recurring.RecurringInvoice, error) {
	query := `SELECT ` + recurringColumns + ` FROM recurring_invoices
		WHERE status = $1 AND next_run_at <= $2 AND (end_date IS NULL OR end_date > $2)
		ORDER BY next_run_at ASC, id ASC`

	var rows []recurringRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, string(types.RecurringStatusActive), now); err != nil {
		return nil, dbError(err, "failed to list due recurring invoices")
	}

	templates := make([]*recurring.RecurringInvoice, 0, len(rows))
	for _, row := range rows {
		tmpl, err := r.withItems(ctx, row.toDomain())
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}

func (r *recurringInvoiceRepository) buildWhere(ctx context.Context, filter *types.RecurringInvoiceFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("user_id = ?", types.GetUserID(ctx))
	if filter.ClientID != "" {
		w.add("client_id = ?", filter.ClientID)
	}
	if len(filter.Statuses) > 0 {
		w.add("status = ANY(?)", pq.StringArray(lo.Map(filter.Statuses, func(s types.RecurringStatus, _ int) string {
			return string(s)
		})))
	}
	return w
}

func (r *recurringInvoiceRepository) insertItems(ctx context.Context, tmpl *recurring.RecurringInvoice) error {
	groupQuery := `
		INSERT INTO recurring_invoice_groups (id, recurring_invoice_id, name, sort_order)
		VALUES (:id, :parent_id, :name, :sort_order)`
	itemQuery := `
		INSERT INTO recurring_invoice_items (id, recurring_invoice_id, group_id, description, quantity, unit_price, sort_order)
		VALUES (:id, :parent_id, :group_id, :description, :quantity, :unit_price, :sort_order)`

	items := append([]*recurring.Item(nil), tmpl.Items...)
	for _, g := range tmpl.Groups {
		row := itemGroupRow{ID: g.ID, ParentID: tmpl.ID, Name: g.Name, SortOrder: g.SortOrder}
		if _, err := r.db.NamedExecContext(ctx, groupQuery, row); err != nil {
			return dbError(err, "failed to create recurring invoice group")
		}
		items = append(items, g.Items...)
	}
	for _, item := range items {
		row := lineItemRow{
			ID:          item.ID,
			ParentID:    tmpl.ID,
			GroupID:     item.GroupID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			SortOrder:   item.SortOrder,
		}
		if _, err := r.db.NamedExecContext(ctx, itemQuery, row); err != nil {
			return dbError(err, "failed to create recurring invoice item")
		}
	}
	return nil
}

func (r *recurringInvoiceRepository) withItems(ctx context.Context, tmpl *recurring.RecurringInvoice) (*recurring.RecurringInvoice, error) {
	q := r.db.GetQuerier(ctx)

	var groups []itemGroupRow
	if err := q.SelectContext(ctx, &groups,
		`SELECT id, recurring_invoice_id AS parent_id, name, sort_order FROM recurring_invoice_groups
		 WHERE recurring_invoice_id = $1 ORDER BY sort_order, id`, tmpl.ID); err != nil {
		return nil, dbError(err, "failed to load recurring invoice groups")
	}

	var items []lineItemRow
	if err := q.SelectContext(ctx, &items,
		`SELECT id, recurring_invoice_id AS parent_id, group_id, description, quantity, unit_price, 0 AS amount, sort_order
		 FROM recurring_invoice_items WHERE recurring_invoice_id = $1 ORDER BY sort_order, id`, tmpl.ID); err != nil {
		return nil, dbError(err, "failed to load recurring invoice items")
	}

	byGroup := make(map[string]*recurring.Group, len(groups))
	for _, g := range groups {
		group := &recurring.Group{ID: g.ID, RecurringInvoiceID: g.ParentID, Name: g.Name, SortOrder: g.SortOrder}
		byGroup[g.ID] = group
		tmpl.Groups = append(tmpl.Groups, group)
	}
	for _, row := range items {
		item := &recurring.Item{
			ID:                 row.ID,
			RecurringInvoiceID: row.ParentID,
			GroupID:            row.GroupID,
			Description:        row.Description,
			Quantity:           row.Quantity,
			UnitPrice:          row.UnitPrice,
			SortOrder:          row.SortOrder,
		}
		if row.GroupID != nil {
			if group, ok := byGroup[*row.GroupID]; ok {
				group.Items = append(group.Items, item)
				continue
			}
		}
		tmpl.Items = append(tmpl.Items, item)
	}
	return tmpl, nil
}
