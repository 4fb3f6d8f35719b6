/*
Package customers is the customer directory consumed by the engine.

LIFECYCLE:
  A customer is in one of three states:

    active ──SoftDelete──▶ soft_deleted ──Restore──▶ active
       │                        │
       └───────HardDelete───────┴──▶ gone (row and every related record removed)

  Soft delete keeps the record and all of its history. Every read path
  filters soft-deleted customers unless ReadOptions.IncludeDeleted is set.
  Hard delete is explicit and cascades to orders, ledger entries, legacy
  credit records and milk data.

UNIQUENESS:
  Phone is the immutable lookup key and is unique among non-deleted
  customers. A soft-deleted customer's phone can be re-registered.

PIN:
  The PIN is stored only as a bcrypt hash and never serialized.
*/
package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/kirana-ledger/core"
	"github.com/warp/kirana-ledger/sequence"
)

// pinCost keeps PIN verification cheap on small store hardware.
const pinCost = 8

// State is the lifecycle state of a customer record.
type State string

const (
	StateActive      State = "active"
	StateSoftDeleted State = "soft_deleted"
)

// Address holds delivery address fields.
type Address struct {
	Line1    string `json:"line1,omitempty"`
	Line2    string `json:"line2,omitempty"`
	Landmark string `json:"landmark,omitempty"`
	Area     string `json:"area,omitempty"`
	Pincode  string `json:"pincode,omitempty"`
}

type Customer struct {
	ID          int64           `json:"id"`
	Phone       string          `json:"phone"`
	Name        string          `json:"name"`
	Address     Address         `json:"address"`
	CreditLimit decimal.Decimal `json:"creditLimit"`
	State       State           `json:"state"`
	DeletedAt   *time.Time      `json:"deletedAt,omitempty"`
	PINHash     string          `json:"-"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Deleted reports whether the customer is soft-deleted.
func (c *Customer) Deleted() bool { return c.State == StateSoftDeleted }

// ReadOptions controls whether soft-deleted customers are visible.
type ReadOptions struct {
	IncludeDeleted bool
}

// Store persists customers.
type Store interface {
	InsertCustomer(ctx context.Context, c Customer) error
	UpdateCustomer(ctx context.Context, c Customer) error
	// GetCustomer returns nil when no record exists (deleted or not).
	GetCustomer(ctx context.Context, id int64) (*Customer, error)
	// FindActiveCustomerByPhone returns the non-deleted customer with phone, or nil.
	FindActiveCustomerByPhone(ctx context.Context, phone string) (*Customer, error)
	ListCustomers(ctx context.Context, includeDeleted bool) ([]Customer, error)
	// HardDeleteCustomer removes the customer and every related record atomically.
	HardDeleteCustomer(ctx context.Context, id int64) error
}

// Lookup is the read contract other components depend on.
type Lookup interface {
	FindByPhone(ctx context.Context, phone string) (*Customer, error)
	FindByID(ctx context.Context, id int64) (*Customer, error)
}

// =============================================================================
// DIRECTORY
// =============================================================================

// Invalidator drops views derived from the set of live customers.
type Invalidator interface {
	InvalidateAll(ctx context.Context)
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateAll(context.Context) {}

type Directory struct {
	store       Store
	seq         *sequence.Generator
	invalidator Invalidator
	now         func() time.Time
}

func NewDirectory(store Store, seq *sequence.Generator) *Directory {
	return &Directory{store: store, seq: seq, invalidator: nopInvalidator{}, now: time.Now}
}

// SetInvalidator registers the cache to notify on lifecycle changes.
func (d *Directory) SetInvalidator(inv Invalidator) {
	if inv == nil {
		inv = nopInvalidator{}
	}
	d.invalidator = inv
}

// RegisterInput is the data needed to create a customer.
type RegisterInput struct {
	Phone       string
	Name        string
	Address     Address
	CreditLimit decimal.Decimal
	PIN         string
}

// NormalizePhone strips formatting so lookups match regardless of input style.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	// Drop the Indian country code on 12-digit numbers
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		digits = digits[2:]
	}
	return digits
}

// Register creates a customer. Phone must be unique among active customers.
func (d *Directory) Register(ctx context.Context, in RegisterInput) (*Customer, error) {
	phone := NormalizePhone(in.Phone)
	if len(phone) < 10 {
		return nil, core.Invalid("phone", "must contain at least 10 digits")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, core.Invalid("name", "is required")
	}
	if in.CreditLimit.IsNegative() {
		return nil, core.Invalid("creditLimit", "must not be negative")
	}

	existing, err := d.store.FindActiveCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, core.Storage("find customer by phone", err)
	}
	if existing != nil {
		return nil, core.Reject(core.CodeDuplicatePhone, "a customer with phone %s already exists", phone)
	}

	var pinHash string
	if in.PIN != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.PIN), pinCost)
		if err != nil {
			return nil, core.Invalid("pin", err.Error())
		}
		pinHash = string(hash)
	}

	id, err := d.seq.NextID(ctx, sequence.Customers)
	if err != nil {
		return nil, err
	}

	c := Customer{
		ID:          id,
		Phone:       phone,
		Name:        name,
		Address:     in.Address,
		CreditLimit: in.CreditLimit,
		State:       StateActive,
		PINHash:     pinHash,
		CreatedAt:   d.now().UTC(),
	}
	if err := d.store.InsertCustomer(ctx, c); err != nil {
		if errors.Is(err, core.ErrDuplicate) {
			return nil, core.Reject(core.CodeDuplicatePhone, "a customer with phone %s already exists", phone)
		}
		return nil, core.Storage("insert customer", err)
	}
	return &c, nil
}

// FindByPhone returns the active customer for phone, or nil.
func (d *Directory) FindByPhone(ctx context.Context, phone string) (*Customer, error) {
	phone = NormalizePhone(phone)
	if phone == "" {
		return nil, nil
	}
	c, err := d.store.FindActiveCustomerByPhone(ctx, phone)
	if err != nil {
		return nil, core.Storage("find customer by phone", err)
	}
	return c, nil
}

// FindByID returns the active customer with id, or nil.
func (d *Directory) FindByID(ctx context.Context, id int64) (*Customer, error) {
	return d.Get(ctx, id, ReadOptions{})
}

// Get returns the customer with id, honoring opts. Returns nil when invisible.
func (d *Directory) Get(ctx context.Context, id int64, opts ReadOptions) (*Customer, error) {
	c, err := d.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, core.Storage("get customer", err)
	}
	if c == nil || (c.Deleted() && !opts.IncludeDeleted) {
		return nil, nil
	}
	return c, nil
}

// List returns customers, honoring opts.
func (d *Directory) List(ctx context.Context, opts ReadOptions) ([]Customer, error) {
	list, err := d.store.ListCustomers(ctx, opts.IncludeDeleted)
	if err != nil {
		return nil, core.Storage("list customers", err)
	}
	return list, nil
}

// SoftDelete flags the customer deleted and keeps every record.
func (d *Directory) SoftDelete(ctx context.Context, id int64) (*Customer, error) {
	c, err := d.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Deleted() {
		return c, nil
	}
	at := d.now().UTC()
	c.State = StateSoftDeleted
	c.DeletedAt = &at
	if err := d.store.UpdateCustomer(ctx, *c); err != nil {
		return nil, core.Storage("soft delete customer", err)
	}
	d.invalidator.InvalidateAll(ctx)
	return c, nil
}

// Restore reactivates a soft-deleted customer. Fails if another active
// customer took the phone meanwhile.
func (d *Directory) Restore(ctx context.Context, id int64) (*Customer, error) {
	c, err := d.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.Deleted() {
		return c, nil
	}
	other, err := d.store.FindActiveCustomerByPhone(ctx, c.Phone)
	if err != nil {
		return nil, core.Storage("find customer by phone", err)
	}
	if other != nil && other.ID != c.ID {
		return nil, core.Reject(core.CodeDuplicatePhone, "phone %s now belongs to customer %d", c.Phone, other.ID)
	}
	c.State = StateActive
	c.DeletedAt = nil
	if err := d.store.UpdateCustomer(ctx, *c); err != nil {
		if errors.Is(err, core.ErrDuplicate) {
			return nil, core.Reject(core.CodeDuplicatePhone, "phone %s is in use", c.Phone)
		}
		return nil, core.Storage("restore customer", err)
	}
	d.invalidator.InvalidateAll(ctx)
	return c, nil
}

// HardDelete removes the customer and cascades to every related collection.
func (d *Directory) HardDelete(ctx context.Context, id int64) error {
	if _, err := d.mustGet(ctx, id); err != nil {
		return err
	}
	if err := d.store.HardDeleteCustomer(ctx, id); err != nil {
		return core.Storage("hard delete customer", err)
	}
	d.invalidator.InvalidateAll(ctx)
	return nil
}

// VerifyPIN checks pin against the stored hash of an active customer.
func (d *Directory) VerifyPIN(ctx context.Context, phone, pin string) (*Customer, bool, error) {
	c, err := d.FindByPhone(ctx, phone)
	if err != nil || c == nil || c.PINHash == "" {
		return nil, false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PINHash), []byte(pin)) != nil {
		return nil, false, nil
	}
	return c, true, nil
}

func (d *Directory) mustGet(ctx context.Context, id int64) (*Customer, error) {
	c, err := d.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, core.Storage("get customer", err)
	}
	if c == nil {
		return nil, core.NotFound("customer", id)
	}
	return c, nil
}
