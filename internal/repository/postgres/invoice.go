package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/invoicekit/invoicekit/internal/domain/invoice"
	"github.com/invoicekit/invoicekit/internal/logger"
	"github.com/invoicekit/invoicekit/internal/postgres"
	"github.com/invoicekit/invoicekit/internal/types"
	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const invoiceColumns = `id, public_id, user_id, client_id, currency, status, discount_type, discount_value,
	tax_rate, subtotal, discount_amount, tax_amount, total, paid_amount, payment_method, due_date,
	sent_at, viewed_at, paid_at, notes, tags, source, recurring_invoice_id,
	created_at, updated_at, created_by, updated_by`

var invoiceSortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"due_date":   "due_date",
	"total":      "total",
}

type invoiceRow struct {
	ID                 string              `db:"id"`
	PublicID           string              `db:"public_id"`
	ClientID           string              `db:"client_id"`
	Currency           string              `db:"currency"`
	Status             string              `db:"status"`
	DiscountType       sql.NullString      `db:"discount_type"`
	DiscountValue      decimal.NullDecimal `db:"discount_value"`
	TaxRate            decimal.Decimal     `db:"tax_rate"`
	Subtotal           int64               `db:"subtotal"`
	DiscountAmount     int64               `db:"discount_amount"`
	TaxAmount          int64               `db:"tax_amount"`
	Total              int64               `db:"total"`
	PaidAmount         int64               `db:"paid_amount"`
	PaymentMethod      sql.NullString      `db:"payment_method"`
	DueDate            time.Time           `db:"due_date"`
	SentAt             *time.Time          `db:"sent_at"`
	ViewedAt           *time.Time          `db:"viewed_at"`
	PaidAt             *time.Time          `db:"paid_at"`
	Notes              string              `db:"notes"`
	Tags               pq.StringArray      `db:"tags"`
	Source             string              `db:"source"`
	RecurringInvoiceID *string             `db:"recurring_invoice_id"`
	types.BaseModel
}

type itemGroupRow struct {
	ID        string `db:"id"`
	ParentID  string `db:"parent_id"`
	Name      string `db:"name"`
	SortOrder int    `db:"sort_order"`
}

type lineItemRow struct {
	ID          string          `db:"id"`
	ParentID    string          `db:"parent_id"`
	GroupID     *string         `db:"group_id"`
	Description string          `db:"description"`
	Quantity    decimal.Decimal `db:"quantity"`
	UnitPrice   int64           `db:"unit_price"`
	Amount      int64           `db:"amount"`
	SortOrder   int             `db:"sort_order"`
}

func newInvoiceRow(inv *invoice.Invoice) *invoiceRow {
	row := &invoiceRow{
		ID:                 inv.ID,
		PublicID:           inv.PublicID,
		ClientID:           inv.ClientID,
		Currency:           inv.Currency,
		Status:             string(inv.Status),
		TaxRate:            inv.TaxRate,
		Subtotal:           inv.Subtotal,
		DiscountAmount:     inv.DiscountAmount,
		TaxAmount:          inv.TaxAmount,
		Total:              inv.Total,
		PaidAmount:         inv.PaidAmount,
		DueDate:            inv.DueDate,
		SentAt:             inv.SentAt,
		ViewedAt:           inv.ViewedAt,
		PaidAt:             inv.PaidAt,
		Notes:              inv.Notes,
		Tags:               pq.StringArray(lo.Ternary(inv.Tags == nil, []string{}, inv.Tags)),
		Source:             string(inv.Source),
		RecurringInvoiceID: inv.RecurringInvoiceID,
		BaseModel:          inv.BaseModel,
	}
	if inv.Discount != nil {
		row.DiscountType = sql.NullString{String: string(inv.Discount.Type), Valid: true}
		row.DiscountValue = decimal.NullDecimal{Decimal: inv.Discount.Value, Valid: true}
	}
	if inv.PaymentMethod != nil {
		row.PaymentMethod = sql.NullString{String: string(*inv.PaymentMethod), Valid: true}
	}
	return row
}

func (row *invoiceRow) toDomain() *invoice.Invoice {
	inv := &invoice.Invoice{
		ID:                 row.ID,
		PublicID:           row.PublicID,
		ClientID:           row.ClientID,
		Currency:           row.Currency,
		Status:             types.InvoiceStatus(row.Status),
		TaxRate:            row.TaxRate,
		Subtotal:           row.Subtotal,
		DiscountAmount:     row.DiscountAmount,
		TaxAmount:          row.TaxAmount,
		Total:              row.Total,
		PaidAmount:         row.PaidAmount,
		DueDate:            row.DueDate,
		SentAt:             row.SentAt,
		ViewedAt:           row.ViewedAt,
		PaidAt:             row.PaidAt,
		Notes:              row.Notes,
		Tags:               []string(row.Tags),
		Source:             types.InvoiceSource(row.Source),
		RecurringInvoiceID: row.RecurringInvoiceID,
		BaseModel:          row.BaseModel,
	}
	if row.DiscountType.Valid {
		inv.Discount = &invoice.Discount{
			Type:  types.DiscountType(row.DiscountType.String),
			Value: row.DiscountValue.Decimal,
		}
	}
	if row.PaymentMethod.Valid {
		inv.PaymentMethod = lo.ToPtr(types.PaymentMethod(row.PaymentMethod.String))
	}
	return inv
}

type invoiceRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewInvoiceRepository(db *postgres.DB, logger *logger.Logger) invoice.Repository {
	return &invoiceRepository{db: db, logger: logger}
}

func (r *invoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `) VALUES (
			:id, :public_id, :user_id, :client_id, :currency, :status, :discount_type, :discount_value,
			:tax_rate, :subtotal, :discount_amount, :tax_amount, :total, :paid_amount, :payment_method, :due_date,
			:sent_at, :viewed_at, :paid_at, :notes, :tags, :source, :recurring_invoice_id,
			:created_at, :updated_at, :created_by, :updated_by
		)`

	r.logger.Debugw("creating invoice",
		"invoice_id", inv.ID,
		"user_id", inv.UserID,
	)

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.db.NamedExecContext(ctx, query, newInvoiceRow(inv)); err != nil {
			return dbError(err, "failed to create invoice")
		}
		return r.insertItems(ctx, inv)
	})
}

func (r *invoiceRepository) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var row invoiceRow
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id = $1 AND user_id = $2`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, id, types.GetUserID(ctx)); err != nil {
		return nil, notFoundOr(err, "Invoice", id)
	}
	return r.withItems(ctx, row.toDomain())
}

func (r *invoiceRepository) GetByPublicID(ctx context.Context, publicID string) (*invoice.Invoice, error) {
	var row invoiceRow
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE public_id = $1`
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &row, query, publicID); err != nil {
		return nil, notFoundOr(err, "Invoice", publicID)
	}
	return r.withItems(ctx, row.toDomain())
}

func (r *invoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices SET
			client_id = :client_id,
			currency = :currency,
			status = :status,
			discount_type = :discount_type,
			discount_value = :discount_value,
			tax_rate = :tax_rate,
			subtotal = :subtotal,
			discount_amount = :discount_amount,
			tax_amount = :tax_amount,
			total = :total,
			paid_amount = :paid_amount,
			payment_method = :payment_method,
			due_date = :due_date,
			sent_at = :sent_at,
			viewed_at = :viewed_at,
			paid_at = :paid_at,
			notes = :notes,
			tags = :tags,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND user_id = :user_id`

	r.logger.Debugw("updating invoice",
		"invoice_id", inv.ID,
		"status", inv.Status,
		"paid_amount", inv.PaidAmount,
	)

	result, err := r.db.NamedExecContext(ctx, query, newInvoiceRow(inv))
	if err != nil {
		return dbError(err, "failed to update invoice")
	}
	return requireAffected(result, "Invoice", inv.ID)
}

func (r *invoiceRepository) MarkPaidIfUnpaid(ctx context.Context, inv *invoice.Invoice) (bool, error) {
	query := `
		UPDATE invoices SET
			status = :status,
			paid_amount = :paid_amount,
			payment_method = :payment_method,
			paid_at = :paid_at,
			updated_at = :updated_at,
			updated_by = :updated_by
		WHERE id = :id AND user_id = :user_id AND paid_at IS NULL`

	result, err := r.db.NamedExecContext(ctx, query, newInvoiceRow(inv))
	if err != nil {
		return false, dbError(err, "failed to mark invoice paid")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, dbError(err, "failed to read affected rows")
	}
	return n > 0, nil
}

func (r *invoiceRepository) ReplaceItems(ctx context.Context, inv *invoice.Invoice) error {
	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)

		var owned bool
		if err := q.GetContext(ctx, &owned, `SELECT EXISTS (SELECT 1 FROM invoices WHERE id = $1 AND user_id = $2)`,
			inv.ID, types.GetUserID(ctx)); err != nil {
			return dbError(err, "failed to check invoice ownership")
		}
		if !owned {
			return notFoundOr(sql.ErrNoRows, "Invoice", inv.ID)
		}

		if _, err := q.ExecContext(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, inv.ID); err != nil {
			return dbError(err, "failed to delete invoice items")
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM invoice_item_groups WHERE invoice_id = $1`, inv.ID); err != nil {
			return dbError(err, "failed to delete invoice item groups")
		}
		return r.insertItems(ctx, inv)
	})
}

func (r *invoiceRepository) Delete(ctx context.Context, id string) error {
	r.logger.Debugw("deleting invoice",
		"invoice_id", id,
		"user_id", types.GetUserID(ctx),
	)

	result, err := r.db.GetQuerier(ctx).ExecContext(ctx,
		`DELETE FROM invoices WHERE id = $1 AND user_id = $2`, id, types.GetUserID(ctx))
	if err != nil {
		return dbError(err, "failed to delete invoice")
	}
	return requireAffected(result, "Invoice", id)
}

func (r *invoiceRepository) List(ctx context.Context, filter *types.InvoiceFilter) ([]*invoice.Invoice, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	w := r.buildWhere(ctx, filter)
	query := `SELECT ` + invoiceColumns + ` FROM invoices` + w.String() +
		w.page(sortColumn(filter.GetSort(), invoiceSortColumns), filter.GetOrder(),
			filter.GetLimit(), filter.GetOffset(), filter.IsUnlimited())

	var rows []invoiceRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, dbError(err, "failed to list invoices")
	}

	return lo.Map(rows, func(row invoiceRow, _ int) *invoice.Invoice {
		return row.toDomain()
	}), nil
}

func (r *invoiceRepository) Count(ctx context.Context, filter *types.InvoiceFilter) (int, error) {
	if filter == nil {
		filter = types.NewInvoiceFilter()
	}

	w := r.buildWhere(ctx, filter)
	var count int
	if err := r.db.GetQuerier(ctx).GetContext(ctx, &count, `SELECT COUNT(*) FROM invoices`+w.String(), w.args...); err != nil {
		return 0, dbError(err, "failed to count invoices")
	}
	return count, nil
}

func (r *invoiceRepository) CountByStatus(ctx context.Context) (map[types.InvoiceStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM invoices WHERE user_id = $1 GROUP BY status`
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, types.GetUserID(ctx)); err != nil {
		return nil, dbError(err, "failed to count invoices by status")
	}

	counts := make(map[types.InvoiceStatus]int, len(types.AllInvoiceStatuses))
	for _, s := range types.AllInvoiceStatuses {
		counts[s] = 0
	}
	for _, row := range rows {
		counts[types.InvoiceStatus(row.Status)] = row.Count
	}
	return counts, nil
}

func (r *invoiceRepository) ListOverdueCandidates(ctx context.Context, dueBefore time.Time) ([]*invoice.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices
		WHERE status = ANY($1) AND paid_at IS NULL AND due_date < $2
		ORDER BY due_date ASC`

	statuses := pq.StringArray{string(types.InvoiceStatusSent), string(types.InvoiceStatusViewed)}

	var rows []invoiceRow
	if err := r.db.GetQuerier(ctx).SelectContext(ctx, &rows, query, statuses, dueBefore); err != nil {
		return nil, dbError(err, "failed to list overdue candidates")
	}
	return lo.Map(rows, func(row invoiceRow, _ int) *invoice.Invoice {
		return row.toDomain()
	}), nil
}

// buildWhere translates the stored-field criteria. Statuses holds display statuses and
// is resolved by the service, so it is not applied here.
func (r *invoiceRepository) buildWhere(ctx context.Context, filter *types.InvoiceFilter) *whereBuilder {
	w := &whereBuilder{}
	w.add("user_id = ?", types.GetUserID(ctx))

	if len(filter.InvoiceIDs) > 0 {
		w.add("id = ANY(?)", pq.StringArray(filter.InvoiceIDs))
	}
	if filter.ClientID != "" {
		w.add("client_id = ?", filter.ClientID)
	}
	if filter.Tag != "" {
		w.add("? = ANY(tags)", filter.Tag)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		w.add("(public_id ILIKE ? OR notes ILIKE ?)", pattern, pattern)
	}
	if filter.DueBefore != nil {
		w.add("due_date < ?", *filter.DueBefore)
	}
	if filter.TimeRangeFilter != nil {
		if filter.StartTime != nil {
			w.add("created_at >= ?", *filter.StartTime)
		}
		if filter.EndTime != nil {
			w.add("created_at < ?", *filter.EndTime)
		}
	}
	return w
}

func (r *invoiceRepository) insertItems(ctx context.Context, inv *invoice.Invoice) error {
	groupQuery := `
		INSERT INTO invoice_item_groups (id, invoice_id, name, sort_order)
		VALUES (:id, :parent_id, :name, :sort_order)`
	itemQuery := `
		INSERT INTO invoice_items (id, invoice_id, group_id, description, quantity, unit_price, amount, sort_order)
		VALUES (:id, :parent_id, :group_id, :description, :quantity, :unit_price, :amount, :sort_order)`

	for _, g := range inv.Groups {
		row := itemGroupRow{ID: g.ID, ParentID: inv.ID, Name: g.Name, SortOrder: g.SortOrder}
		if _, err := r.db.NamedExecContext(ctx, groupQuery, row); err != nil {
			return dbError(err, "failed to create invoice item group")
		}
	}
	for _, item := range inv.AllItems() {
		row := lineItemRow{
			ID:          item.ID,
			ParentID:    inv.ID,
			GroupID:     item.GroupID,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
			SortOrder:   item.SortOrder,
		}
		if _, err := r.db.NamedExecContext(ctx, itemQuery, row); err != nil {
			return dbError(err, "failed to create invoice item")
		}
	}
	return nil
}

func (r *invoiceRepository) withItems(ctx context.Context, inv *invoice.Invoice) (*invoice.Invoice, error) {
	q := r.db.GetQuerier(ctx)

	var groups []itemGroupRow
	if err := q.SelectContext(ctx, &groups,
		`SELECT id, invoice_id AS parent_id, name, sort_order FROM invoice_item_groups
		 WHERE invoice_id = $1 ORDER BY sort_order, id`, inv.ID); err != nil {
		return nil, dbError(err, "failed to load invoice item groups")
	}

	var items []lineItemRow
	if err := q.SelectContext(ctx, &items,
		`SELECT id, invoice_id AS parent_id, group_id, description, quantity, unit_price, amount, sort_order
		 FROM invoice_items WHERE invoice_id = $1 ORDER BY sort_order, id`, inv.ID); err != nil {
		return nil, dbError(err, "failed to load invoice items")
	}

	byGroup := make(map[string]*invoice.ItemGroup, len(groups))
	for _, g := range groups {
		group := &invoice.ItemGroup{ID: g.ID, InvoiceID: g.ParentID, Name: g.Name, SortOrder: g.SortOrder}
		byGroup[g.ID] = group
		inv.Groups = append(inv.Groups, group)
	}

	for _, row := range items {
		item := &invoice.LineItem{
			ID:          row.ID,
			InvoiceID:   row.ParentID,
			GroupID:     row.GroupID,
			Description: row.Description,
			Quantity:    row.Quantity,
			UnitPrice:   row.UnitPrice,
			Amount:      row.Amount,
			SortOrder:   row.SortOrder,
		}
		if row.GroupID != nil {
			if group, ok := byGroup[*row.GroupID]; ok {
				group.Items = append(group.Items, item)
				continue
			}
		}
		inv.Items = append(inv.Items, item)
	}

	return inv, nil
}
