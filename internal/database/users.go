package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, full_name, email, hashed_password, role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(dest ...interface{}) error }) (User, error) {
	var u User
	err := row.Scan(
		&u.ID, &u.FullName, &u.Email, &u.HashedPassword, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

const getUserByEmail = `
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active = TRUE`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByEmail, email))
}

const getUserByID = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRow(ctx, getUserByID, id))
}

const listUsers = `
SELECT ` + userColumns + `
FROM users
WHERE is_active = TRUE
ORDER BY full_name`

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, listUsers)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

type CreateUserParams struct {
	FullName       string
	Email          string
	HashedPassword string
	Role           string
}

const createUser = `
INSERT INTO users (full_name, email, hashed_password, role)
VALUES ($1, $2, $3, $4)
RETURNING ` + userColumns

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, createUser,
		arg.FullName, arg.Email, arg.HashedPassword, arg.Role,
	))
}

type UpdateUserParams struct {
	ID       uuid.UUID
	FullName string
	Role     string
}

const updateUser = `
UPDATE users
SET full_name = $2, role = $3, updated_at = NOW()
WHERE id = $1 AND is_active = TRUE
RETURNING ` + userColumns

func (q *Queries) UpdateUser(ctx context.Context, arg UpdateUserParams) (User, error) {
	return scanUser(q.db.QueryRow(ctx, updateUser, arg.ID, arg.FullName, arg.Role))
}

const deactivateUser = `
UPDATE users
SET is_active = FALSE, updated_at = NOW()
WHERE id = $1 AND is_active = TRUE
RETURNING id`

func (q *Queries) DeactivateUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deactivated uuid.UUID
	err := q.db.QueryRow(ctx, deactivateUser, id).Scan(&deactivated)
	return deactivated, err
}

// --- Customers ---

const customerColumns = `id, user_id, name, document_id, phone, address, is_active, created_at`

func scanCustomer(row interface{ Scan(dest ...interface{}) error }) (Customer, error) {
	var c Customer
	err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.DocumentID, &c.Phone, &c.Address,
		&c.IsActive, &c.CreatedAt,
	)
	return c, err
}

const listCustomers = `
SELECT ` + customerColumns + `
FROM customers
WHERE is_active = TRUE
ORDER BY name
LIMIT $1 OFFSET $2`

type ListCustomersParams struct {
	Limit  int32
	Offset int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, listCustomers, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

const getCustomer = `
SELECT ` + customerColumns + `
FROM customers
WHERE id = $1 AND is_active = TRUE`

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, getCustomer, id))
}

type CreateCustomerParams struct {
	UserID     pgtype.UUID
	Name       string
	DocumentID pgtype.Text
	Phone      pgtype.Text
	Address    pgtype.Text
}

const createCustomer = `
INSERT INTO customers (user_id, name, document_id, phone, address)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + customerColumns

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, createCustomer,
		arg.UserID, arg.Name, arg.DocumentID, arg.Phone, arg.Address,
	))
}

type UpdateCustomerParams struct {
	ID         uuid.UUID
	Name       string
	DocumentID pgtype.Text
	Phone      pgtype.Text
	Address    pgtype.Text
}

const updateCustomer = `
UPDATE customers
SET name = $2, document_id = $3, phone = $4, address = $5
WHERE id = $1 AND is_active = TRUE
RETURNING ` + customerColumns

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	return scanCustomer(q.db.QueryRow(ctx, updateCustomer,
		arg.ID, arg.Name, arg.DocumentID, arg.Phone, arg.Address,
	))
}

const softDeleteCustomer = `
UPDATE customers
SET is_active = FALSE
WHERE id = $1 AND is_active = TRUE
RETURNING id`

func (q *Queries) SoftDeleteCustomer(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteCustomer, id).Scan(&deleted)
	return deleted, err
}
