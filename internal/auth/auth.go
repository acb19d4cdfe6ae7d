// Package auth keeps desk user accounts in a users table and checks logins.
package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/chargedesk/internal/common"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/service"
)

// Users table columns.
const (
	ColumnID        = "ID"
	ColumnPassword  = "Password"
	ColumnRole      = "Role"
	ColumnAgentName = "Agent Name"
)

// UsersHeader is written to an empty users table.
var UsersHeader = []string{ColumnID, ColumnPassword, ColumnRole, ColumnAgentName}

// Authentication errors.
var (
	ErrInvalidCredentials = errors.New("invalid ID or password")
	ErrUserExists         = errors.New("user ID already exists")
	ErrInvalidRole        = errors.New("invalid role")
)

// Role is what a user may do on the desk.
type Role string

// Roles.
const (
	RoleManager Role = "Manager"
	RoleAgent   Role = "Agent"
)

// ParseRole folds case. A blank role is not a role: every account must
// be created as a Manager or an Agent.
func ParseRole(text string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "manager":
		return RoleManager, nil
	case "agent":
		return RoleAgent, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, text)
}

// Profile is a logged-in user.
type Profile struct {
	ID        string
	Role      Role
	AgentName string
}

// CanManage reports whether the user may approve, edit and delete records.
func (p Profile) CanManage() bool {
	return p.Role == RoleManager
}

// SignUpRequest carries a new account.
type SignUpRequest struct {
	ID        string
	Password  string
	Role      Role
	AgentName string
}

// Directory is the user account store.
type Directory struct {
	table  service.Table
	logger *slog.Logger
	agents []string
	cost   int
}

// NewDirectory creates a directory over a users table. agents, when
// non-empty, restricts which agent names an Agent account may claim.
func NewDirectory(table service.Table, agents []string, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		table:  table,
		agents: agents,
		logger: logger,
		cost:   bcrypt.DefaultCost,
	}
}

// SetCost changes the bcrypt cost for new hashes.
func (d *Directory) SetCost(cost int) {
	d.cost = cost
}

// SignUp creates an account. The password is stored as a bcrypt hash.
func (d *Directory) SignUp(ctx context.Context, req SignUpRequest) (Profile, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.AgentName = strings.TrimSpace(req.AgentName)

	if req.ID == "" || req.Password == "" {
		return Profile{}, fmt.Errorf("%w: user ID and password are required", common.ErrValidation)
	}
	role, err := ParseRole(string(req.Role))
	if err != nil {
		return Profile{}, err
	}
	if role == RoleAgent {
		if req.AgentName == "" {
			return Profile{}, fmt.Errorf("%w: agent accounts need an agent name", common.ErrValidation)
		}
		if !d.knownAgent(req.AgentName) {
			return Profile{}, fmt.Errorf("%w: unknown agent %q", common.ErrValidation, req.AgentName)
		}
	}

	sheet, err := d.table.ReadAll(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load users: %w", err)
	}
	cols := newColumns(sheet.Header)
	for _, row := range sheet.Rows {
		if cols.get(row, ColumnID) == req.ID {
			return Profile{}, fmt.Errorf("%w: %s", ErrUserExists, req.ID)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.cost)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %w", common.ErrValidation, err)
	}

	if len(sheet.Header) == 0 {
		if err := d.table.Append(ctx, UsersHeader); err != nil {
			return Profile{}, fmt.Errorf("failed to write users header: %w", err)
		}
		cols = newColumns(UsersHeader)
	}

	profile := Profile{ID: req.ID, Role: role, AgentName: req.AgentName}
	if err := d.table.Append(ctx, cols.row(profile, string(hash))); err != nil {
		return Profile{}, fmt.Errorf("failed to save user: %w", err)
	}

	d.logger.Info("User signed up", "id", profile.ID, "role", profile.Role)
	return profile, nil
}

// Login checks credentials. Accounts still holding a legacy SHA-256 or
// plaintext password are upgraded to bcrypt on their first good login.
func (d *Directory) Login(ctx context.Context, id, password string) (Profile, error) {
	id = strings.TrimSpace(id)
	if id == "" || password == "" {
		return Profile{}, ErrInvalidCredentials
	}

	sheet, err := d.table.ReadAll(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to load users: %w", err)
	}
	cols := newColumns(sheet.Header)

	for i, row := range sheet.Rows {
		if cols.get(row, ColumnID) != id {
			continue
		}

		stored := cols.get(row, ColumnPassword)
		ok, legacy := verify(stored, password)
		if !ok {
			return Profile{}, ErrInvalidCredentials
		}

		role, err := ParseRole(cols.get(row, ColumnRole))
		if err != nil {
			d.logger.Warn("User has no usable role", "id", id, "error", err)
			return Profile{}, fmt.Errorf("user %s: %w", id, err)
		}
		profile := Profile{ID: id, Role: role, AgentName: cols.get(row, ColumnAgentName)}

		if legacy {
			d.upgrade(ctx, cols, model.RowPosition(i), profile, password)
		}
		return profile, nil
	}

	return Profile{}, ErrInvalidCredentials
}

// upgrade rewrites a legacy password as bcrypt. Failure only costs another
// upgrade attempt on the next login.
func (d *Directory) upgrade(ctx context.Context, cols columns, position int, profile Profile, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), d.cost)
	if err != nil {
		d.logger.Warn("Failed to hash password for upgrade", "id", profile.ID, "error", err)
		return
	}
	if err := d.table.Update(ctx, position, cols.row(profile, string(hash))); err != nil {
		d.logger.Warn("Failed to upgrade legacy password", "id", profile.ID, "error", err)
		return
	}
	d.logger.Info("Upgraded legacy password hash", "id", profile.ID)
}

func (d *Directory) knownAgent(name string) bool {
	if len(d.agents) == 0 {
		return true
	}
	for _, a := range d.agents {
		if strings.EqualFold(strings.TrimSpace(a), name) {
			return true
		}
	}
	return false
}

// verify checks password against a stored credential and reports whether
// the credential uses a legacy format.
func verify(stored, password string) (ok, legacy bool) {
	switch {
	case stored == "":
		return false, false
	case isBcrypt(stored):
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	case isSHA256Hex(stored):
		sum := sha256.Sum256([]byte(password))
		return subtle.ConstantTimeCompare([]byte(strings.ToLower(stored)), []byte(hex.EncodeToString(sum[:]))) == 1, true
	default:
		return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1, true
	}
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// columns maps users-table headers to cell indexes.
type columns struct {
	index  map[string]int
	header []string
}

func newColumns(header []string) columns {
	c := columns{header: header, index: make(map[string]int, len(header))}
	for i, h := range header {
		c.index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return c
}

func (c columns) get(row []string, name string) string {
	i, ok := c.index[strings.ToLower(name)]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (c columns) row(p Profile, password string) []string {
	header := c.header
	if len(header) == 0 {
		header = UsersHeader
	}
	out := make([]string, len(header))
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case strings.ToLower(ColumnID):
			out[i] = p.ID
		case strings.ToLower(ColumnPassword):
			out[i] = password
		case strings.ToLower(ColumnRole):
			out[i] = string(p.Role)
		case strings.ToLower(ColumnAgentName):
			out[i] = p.AgentName
		}
	}
	return out
}
