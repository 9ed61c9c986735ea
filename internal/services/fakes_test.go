package services

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"sort"
	"testing"
	"time"

	"cafeteria_backend/internal/models"
	"cafeteria_backend/internal/repositories"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTxDB returns a sqlmock database. Tests declare the Begin/Commit/Rollback
// they expect; repositories are fakes and never touch it.
func newTxDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return db, mock
}

func intPtr(n int) *int { return &n }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// --- menu items ---

type fakeMenuRepo struct {
	items     map[int64]*models.MenuItem
	nextID    int64
	updateErr error
	log       *[]string
}

func newFakeMenuRepo(items ...*models.MenuItem) *fakeMenuRepo {
	r := &fakeMenuRepo{items: map[int64]*models.MenuItem{}, nextID: 1, log: &[]string{}}
	for _, it := range items {
		r.items[it.ID] = it
		if it.ID >= r.nextID {
			r.nextID = it.ID + 1
		}
	}
	return r
}

func clone(item *models.MenuItem) *models.MenuItem {
	c := *item
	if item.StockQuantity != nil {
		c.StockQuantity = intPtr(*item.StockQuantity)
	}
	return &c
}

func (r *fakeMenuRepo) CreateItem(_ context.Context, _ repositories.SQLExecutor, item *models.MenuItem) (int64, error) {
	item.ID = r.nextID
	r.nextID++
	r.items[item.ID] = clone(item)
	*r.log = append(*r.log, "create")
	return item.ID, nil
}

func (r *fakeMenuRepo) GetItemByID(_ context.Context, id int64) (*models.MenuItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clone(item), nil
}

func (r *fakeMenuRepo) GetItems(_ context.Context, f models.MenuItemFilters) ([]models.MenuItem, error) {
	out := []models.MenuItem{}
	for _, it := range r.items {
		if f.AvailableOnly && !it.Orderable() {
			continue
		}
		out = append(out, *clone(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeMenuRepo) UpdateItem(_ context.Context, _ repositories.SQLExecutor, item *models.MenuItem) error {
	*r.log = append(*r.log, "update")
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.items[item.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.items[item.ID] = clone(item)
	return nil
}

func (r *fakeMenuRepo) DeleteItem(_ context.Context, _ repositories.SQLExecutor, id int64) error {
	if _, ok := r.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.items, id)
	*r.log = append(*r.log, "delete-record")
	return nil
}

func (r *fakeMenuRepo) SetStock(_ context.Context, _ repositories.SQLExecutor, id int64, stock int, isAvailable bool) error {
	item, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	item.StockQuantity = intPtr(stock)
	item.IsAvailable = isAvailable
	return nil
}

func (r *fakeMenuRepo) SetAvailability(_ context.Context, _ repositories.SQLExecutor, id int64, isAvailable bool) error {
	item, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	item.IsAvailable = isAvailable
	return nil
}

func (r *fakeMenuRepo) LockItemsForUpdate(_ context.Context, _ repositories.SQLExecutor, ids []int64) (map[int64]*models.MenuItem, error) {
	out := map[int64]*models.MenuItem{}
	for _, id := range ids {
		if it, ok := r.items[id]; ok {
			out[id] = clone(it)
		}
	}
	return out, nil
}

func (r *fakeMenuRepo) AdjustStock(_ context.Context, _ repositories.SQLExecutor, id int64, delta int) error {
	item, ok := r.items[id]
	if !ok || item.StockQuantity == nil {
		return repositories.ErrNotFound
	}
	item.StockQuantity = intPtr(*item.StockQuantity + delta)
	return nil
}

func (r *fakeMenuRepo) GetLowStockItems(_ context.Context, threshold int) ([]models.MenuItem, error) {
	out := []models.MenuItem{}
	for _, it := range r.items {
		if it.StockQuantity != nil && *it.StockQuantity <= threshold {
			out = append(out, *clone(it))
		}
	}
	sort.Slice(out, func(i, j int) bool { return *out[i].StockQuantity < *out[j].StockQuantity })
	return out, nil
}

func (r *fakeMenuRepo) CountLowStock(ctx context.Context, threshold int) (int, error) {
	items, _ := r.GetLowStockItems(ctx, threshold)
	return len(items), nil
}

// --- stock movements ---

type fakeMovementRepo struct {
	movements []models.StockMovement
}

func (r *fakeMovementRepo) CreateMovement(_ context.Context, _ repositories.SQLExecutor, m *models.StockMovement) (int64, error) {
	m.ID = int64(len(r.movements) + 1)
	r.movements = append(r.movements, *m)
	return m.ID, nil
}

func (r *fakeMovementRepo) GetMovementsByMenuItem(_ context.Context, id int64, _ int) ([]models.StockMovement, error) {
	out := []models.StockMovement{}
	for i := len(r.movements) - 1; i >= 0; i-- {
		if r.movements[i].MenuItemID == id {
			out = append(out, r.movements[i])
		}
	}
	return out, nil
}

// --- orders ---

type fakeOrderRepo struct {
	menu    *fakeMenuRepo
	orders  map[int64]*models.Order
	items   map[int64][]models.OrderItem
	nextID  int64
	itemErr error // returned by CreateOrderItem when set
}

func newFakeOrderRepo(menu *fakeMenuRepo) *fakeOrderRepo {
	return &fakeOrderRepo{menu: menu, orders: map[int64]*models.Order{}, items: map[int64][]models.OrderItem{}, nextID: 1}
}

func (r *fakeOrderRepo) CreateOrder(_ context.Context, _ repositories.SQLExecutor, o *models.Order) (int64, error) {
	for _, existing := range r.orders {
		if existing.VoucherCode == o.VoucherCode {
			return 0, fmt.Errorf("%w: (constraint: %s)", repositories.ErrDuplicateKey, repositories.ConstraintVoucherCode)
		}
	}
	o.ID = r.nextID
	r.nextID++
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	c := *o
	c.Items = nil
	r.orders[o.ID] = &c
	return o.ID, nil
}

func (r *fakeOrderRepo) VoucherCodeExists(_ context.Context, _ repositories.SQLExecutor, code string) (bool, error) {
	for _, o := range r.orders {
		if o.VoucherCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeOrderRepo) GetOrderByID(_ context.Context, _ repositories.SQLExecutor, id int64) (*models.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (r *fakeOrderRepo) LockOrder(ctx context.Context, exec repositories.SQLExecutor, id int64) (*models.Order, error) {
	return r.GetOrderByID(ctx, exec, id)
}

func (r *fakeOrderRepo) GetOrders(_ context.Context, f models.OrderFilters) ([]models.Order, int, error) {
	out := []models.Order{}
	for _, o := range r.orders {
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (r *fakeOrderRepo) UpdateOrderStatus(_ context.Context, _ repositories.SQLExecutor, id int64, from, to string) (bool, error) {
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *fakeOrderRepo) CreateOrderItem(_ context.Context, _ repositories.SQLExecutor, item *models.OrderItem) (int64, error) {
	if r.itemErr != nil {
		return 0, r.itemErr
	}
	item.ID = int64(len(r.items[item.OrderID]) + 1)
	c := *item
	c.MenuItem = nil
	r.items[item.OrderID] = append(r.items[item.OrderID], c)
	return item.ID, nil
}

func (r *fakeOrderRepo) GetOrderItems(_ context.Context, _ repositories.SQLExecutor, ids []int64) (map[int64][]models.OrderItem, error) {
	out := map[int64][]models.OrderItem{}
	for _, id := range ids {
		for _, it := range r.items[id] {
			if it.MenuItemID != nil {
				if mi, ok := r.menu.items[*it.MenuItemID]; ok {
					it.MenuItem = clone(mi)
				}
			}
			out[id] = append(out[id], it)
		}
	}
	return out, nil
}

// --- users and tokens ---

type fakeUserRepo struct {
	users  map[int64]*models.User
	nextID int64
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[int64]*models.User{}, nextID: 1}
	for _, u := range users {
		r.users[u.ID] = u
		if u.ID >= r.nextID {
			r.nextID = u.ID + 1
		}
	}
	return r
}

func (r *fakeUserRepo) emailTaken(email string, except int64) bool {
	for _, u := range r.users {
		if u.Email == email && u.ID != except {
			return true
		}
	}
	return false
}

func (r *fakeUserRepo) CreateUser(_ context.Context, _ repositories.SQLExecutor, u *models.User) (int64, error) {
	if r.emailTaken(u.Email, 0) {
		return 0, fmt.Errorf("%w: creating user (constraint: %s)", repositories.ErrDuplicateKey, repositories.ConstraintUsersEmail)
	}
	u.ID = r.nextID
	r.nextID++
	c := *u
	r.users[u.ID] = &c
	return u.ID, nil
}

func (r *fakeUserRepo) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) FindUserByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (r *fakeUserRepo) GetUsers(_ context.Context, roles []string) ([]models.User, error) {
	out := []models.User{}
	for id := int64(1); id < r.nextID; id++ {
		u, ok := r.users[id]
		if !ok {
			continue
		}
		for _, role := range roles {
			if u.Role == role {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func (r *fakeUserRepo) CountUsers(ctx context.Context, roles []string) (int, error) {
	users, _ := r.GetUsers(ctx, roles)
	return len(users), nil
}

func (r *fakeUserRepo) UpdateUser(_ context.Context, _ repositories.SQLExecutor, u *models.User) error {
	if _, ok := r.users[u.ID]; !ok {
		return repositories.ErrNotFound
	}
	if r.emailTaken(u.Email, u.ID) {
		return fmt.Errorf("%w: updating user (constraint: %s)", repositories.ErrDuplicateKey, repositories.ConstraintUsersEmail)
	}
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r *fakeUserRepo) DeleteUser(_ context.Context, _ repositories.SQLExecutor, id int64) error {
	if _, ok := r.users[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

type fakeTokenRepo struct {
	revoked map[string]time.Time
}

func (r *fakeTokenRepo) RevokeToken(_ context.Context, jti string, exp time.Time) error {
	if r.revoked == nil {
		r.revoked = map[string]time.Time{}
	}
	r.revoked[jti] = exp
	return nil
}

func (r *fakeTokenRepo) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	_, ok := r.revoked[jti]
	return ok, nil
}

func (r *fakeTokenRepo) PurgeExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// --- reports ---

type fakeReportRepo struct {
	total       decimal.Decimal
	count       int
	daily       []models.DailySales
	totals      repositories.OrderTotals
	start, end  time.Time
	timeZone    string
}

func (r *fakeReportRepo) SalesSummary(_ context.Context, start, end time.Time) (decimal.Decimal, int, error) {
	r.start, r.end = start, end
	return r.total, r.count, nil
}

func (r *fakeReportRepo) DailySales(_ context.Context, start, end time.Time, tz string) ([]models.DailySales, error) {
	r.start, r.end, r.timeZone = start, end, tz
	out := make([]models.DailySales, len(r.daily))
	copy(out, r.daily)
	return out, nil
}

func (r *fakeReportRepo) OrderTotals(context.Context) (*repositories.OrderTotals, error) {
	t := r.totals
	return &t, nil
}

// --- image store ---

type fakeImageStore struct {
	saved     map[string][]byte
	deleted   []string
	deleteErr error
	log       *[]string
	next      int
}

func newFakeImageStore(log *[]string) *fakeImageStore {
	return &fakeImageStore{saved: map[string][]byte{}, log: log}
}

func (s *fakeImageStore) Save(ext string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.next++
	path := fmt.Sprintf("menu_images/new-%d%s", s.next, ext)
	s.saved[path] = data
	*s.log = append(*s.log, "save:"+path)
	return path, nil
}

func (s *fakeImageStore) Delete(path string) error {
	*s.log = append(*s.log, "delete:"+path)
	s.deleted = append(s.deleted, path)
	return s.deleteErr
}

func (s *fakeImageStore) URL(path string) string { return "/storage/" + path }

// newFileHeader builds a real multipart upload for name with content.
func newFileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(10 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	gifBytes = append([]byte("GIF89a"), make([]byte, 32)...)
)

func requireFields(t *testing.T, err error, fields ...string) {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected ValidationError, got %v", err)
	require.ErrorIs(t, err, ErrValidation)
	for _, f := range fields {
		assert.Contains(t, verr.Fields, f)
	}
}
