package models

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"

	"eventconnect/database"
	apperrors "eventconnect/pkg/errors"
)

// Tribe roles and membership states
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"

	MemberActive  = "active"
	MemberPending = "pending"
)

// Tribe represents an interest community.
type Tribe struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	IsPrivate   bool        `json:"is_private"`
	Avatar      string      `json:"avatar"`
	Creator     UserSummary `json:"creator"`
	MemberCount int         `json:"member_count"`
	ChatID      int64       `json:"chat_id,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`

	// Caller's relation to the tribe; empty when not a member.
	MyRole   string `json:"my_role,omitempty"`
	MyStatus string `json:"my_status,omitempty"`
}

// TribeMember is a user with their role in a tribe.
type TribeMember struct {
	UserSummary
	Role     string    `json:"role"`
	Status   string    `json:"status"`
	JoinedAt time.Time `json:"joined_at"`
}

// Membership is a user's role and status in a tribe.
type Membership struct {
	Role   string
	Status string
}

// Active reports whether the membership grants member rights.
func (m *Membership) Active() bool {
	return m != nil && m.Status == MemberActive
}

// CanModerate reports whether the member may manage the tribe.
func (m *Membership) CanModerate() bool {
	return m.Active() && (m.Role == RoleOwner || m.Role == RoleAdmin)
}

// CreateTribeRequest represents the request to create a tribe
type CreateTribeRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=60"`
	Description string `json:"description" validate:"max=1000"`
	Category    string `json:"category" validate:"max=40"`
	IsPrivate   bool   `json:"is_private"`
	Avatar      string `json:"avatar" validate:"max=500"`
}

// UpdateTribeRequest carries the editable tribe fields.
type UpdateTribeRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=60"`
	Description *string `json:"description" validate:"omitempty,max=1000"`
	Category    *string `json:"category" validate:"omitempty,max=40"`
	IsPrivate   *bool   `json:"is_private"`
	Avatar      *string `json:"avatar" validate:"omitempty,max=500"`
}

// TribeFilter narrows a tribe listing.
type TribeFilter struct {
	Category string
	Query    string
	Page     Page
}

// JoinResult is the outcome of a join request.
type JoinResult struct {
	TribeID int64  `json:"tribe_id"`
	Status  string `json:"status"`
}

// TribeService handles tribes and their memberships.
type TribeService struct {
	DB *sql.DB
}

// NewTribeService creates a new tribe service
func NewTribeService(db *sql.DB) *TribeService {
	return &TribeService{DB: db}
}

// Create stores a tribe, makes the creator its owner and opens the tribe chat.
func (ts *TribeService) Create(ctx context.Context, creatorID int64, req CreateTribeRequest) (*Tribe, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := Validate(req); err != nil {
		return nil, err
	}

	tx, err := ts.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO tribes (name, description, category, is_private, avatar, creator_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, req.Name, strings.TrimSpace(req.Description), strings.ToLower(strings.TrimSpace(req.Category)),
		req.IsPrivate, req.Avatar, creatorID, now, now)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("a tribe with this name already exists")
		}
		return nil, apperrors.NewInternalError("failed to create tribe", err)
	}
	tribeID, _ := res.LastInsertId()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO tribe_members (tribe_id, user_id, role, status, joined_at) VALUES (?, ?, ?, ?, ?)
	`, tribeID, creatorID, RoleOwner, MemberActive, now); err != nil {
		return nil, apperrors.NewInternalError("failed to add tribe owner", err)
	}

	res, err = tx.ExecContext(ctx, `
		INSERT INTO chats (kind, tribe_id, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, ChatKindTribe, tribeID, now, now)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to create tribe chat", err)
	}
	chatID, _ := res.LastInsertId()
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO chat_participants (chat_id, user_id) VALUES (?, ?)", chatID, creatorID); err != nil {
		return nil, apperrors.NewInternalError("failed to add chat participant", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit tribe", err)
	}
	return ts.Get(ctx, tribeID, creatorID)
}

const tribeSelect = `
	SELECT t.id, t.name, t.description, t.category, t.is_private, t.avatar, t.created_at, t.updated_at,
		u.id, u.username, u.display_name, u.avatar,
		(SELECT COUNT(*) FROM tribe_members m WHERE m.tribe_id = t.id AND m.status = 'active'),
		COALESCE((SELECT c.id FROM chats c WHERE c.tribe_id = t.id), 0),
		COALESCE((SELECT m.role FROM tribe_members m WHERE m.tribe_id = t.id AND m.user_id = ?), ''),
		COALESCE((SELECT m.status FROM tribe_members m WHERE m.tribe_id = t.id AND m.user_id = ?), '')
	FROM tribes t JOIN users u ON u.id = t.creator_id`

func scanTribe(row rowScanner) (*Tribe, error) {
	var t Tribe
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Category, &t.IsPrivate, &t.Avatar, &t.CreatedAt, &t.UpdatedAt,
		&t.Creator.ID, &t.Creator.Username, &t.Creator.DisplayName, &t.Creator.Avatar,
		&t.MemberCount, &t.ChatID, &t.MyRole, &t.MyStatus); err != nil {
		return nil, err
	}
	return &t, nil
}

// Get loads a tribe as seen by viewerID.
func (ts *TribeService) Get(ctx context.Context, tribeID, viewerID int64) (*Tribe, error) {
	t, err := scanTribe(ts.DB.QueryRowContext(ctx, tribeSelect+" WHERE t.id = ?", viewerID, viewerID, tribeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("tribe not found")
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load tribe", err)
	}
	if t.MyStatus != MemberActive {
		t.ChatID = 0
	}
	return t, nil
}

// List returns tribes matching the filter, largest first.
func (ts *TribeService) List(ctx context.Context, viewerID int64, filter TribeFilter) ([]Tribe, error) {
	page := filter.Page.Normalize()
	ds := goqu.Dialect("sqlite3").From(goqu.T("tribes").As("t")).Select(goqu.C("id").Table("t"))
	if filter.Category != "" {
		ds = ds.Where(goqu.C("category").Table("t").Eq(strings.ToLower(filter.Category)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		ds = ds.Where(textMatch(q, "t.name", "t.description"))
	}
	inner, innerArgs, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build tribe query", err)
	}

	query := tribeSelect + " WHERE t.id IN (" + inner + ") ORDER BY 13 DESC, t.id DESC LIMIT ? OFFSET ?"
	args := append([]interface{}{viewerID, viewerID}, innerArgs...)
	args = append(args, page.Limit, page.Offset)
	return ts.queryTribes(ctx, query, args...)
}

// ForUser lists the tribes userID is an active member of.
func (ts *TribeService) ForUser(ctx context.Context, userID, viewerID int64) ([]Tribe, error) {
	return ts.queryTribes(ctx, tribeSelect+`
		WHERE t.id IN (SELECT tribe_id FROM tribe_members WHERE user_id = ? AND status = 'active')
		ORDER BY t.name`, viewerID, viewerID, userID)
}

func (ts *TribeService) queryTribes(ctx context.Context, query string, args ...interface{}) ([]Tribe, error) {
	rows, err := ts.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query tribes", err)
	}
	defer rows.Close()

	tribes := []Tribe{}
	for rows.Next() {
		t, err := scanTribe(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan tribe", err)
		}
		if t.MyStatus != MemberActive {
			t.ChatID = 0
		}
		tribes = append(tribes, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate tribes", err)
	}
	return tribes, nil
}

// Update edits a tribe. Only owners and admins may.
func (ts *TribeService) Update(ctx context.Context, tribeID, userID int64, req UpdateTribeRequest) (*Tribe, error) {
	if err := Validate(req); err != nil {
		return nil, err
	}
	t, err := ts.Get(ctx, tribeID, userID)
	if err != nil {
		return nil, err
	}
	m, err := ts.Membership(ctx, tribeID, userID)
	if err != nil {
		return nil, err
	}
	if !m.CanModerate() {
		return nil, apperrors.NewForbiddenError("only tribe owners and admins can edit the tribe")
	}

	if req.Name != nil {
		t.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		t.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		t.Category = strings.ToLower(strings.TrimSpace(*req.Category))
	}
	if req.IsPrivate != nil {
		t.IsPrivate = *req.IsPrivate
	}
	if req.Avatar != nil {
		t.Avatar = *req.Avatar
	}

	_, err = ts.DB.ExecContext(ctx, `
		UPDATE tribes SET name = ?, description = ?, category = ?, is_private = ?, avatar = ?, updated_at = ?
		WHERE id = ?
	`, t.Name, t.Description, t.Category, t.IsPrivate, t.Avatar, time.Now().UTC(), tribeID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, apperrors.NewConflictError("a tribe with this name already exists")
		}
		return nil, apperrors.NewInternalError("failed to update tribe", err)
	}
	return ts.Get(ctx, tribeID, userID)
}

// Delete removes a tribe. Only the owner may.
func (ts *TribeService) Delete(ctx context.Context, tribeID, userID int64) error {
	if _, err := ts.Get(ctx, tribeID, userID); err != nil {
		return err
	}
	m, err := ts.Membership(ctx, tribeID, userID)
	if err != nil {
		return err
	}
	if !m.Active() || m.Role != RoleOwner {
		return apperrors.NewForbiddenError("only the tribe owner can delete the tribe")
	}
	if _, err := ts.DB.ExecContext(ctx, "DELETE FROM tribes WHERE id = ?", tribeID); err != nil {
		return apperrors.NewInternalError("failed to delete tribe", err)
	}
	return nil
}

// Membership returns userID's membership in tribeID, or nil when none exists.
func (ts *TribeService) Membership(ctx context.Context, tribeID, userID int64) (*Membership, error) {
	var m Membership
	err := ts.DB.QueryRowContext(ctx,
		"SELECT role, status FROM tribe_members WHERE tribe_id = ? AND user_id = ?", tribeID, userID).
		Scan(&m.Role, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load membership", err)
	}
	return &m, nil
}

// IsActiveMember reports whether userID is an active member of tribeID.
func (ts *TribeService) IsActiveMember(ctx context.Context, tribeID, userID int64) (bool, error) {
	m, err := ts.Membership(ctx, tribeID, userID)
	if err != nil {
		return false, err
	}
	return m.Active(), nil
}

// Join adds userID to a tribe. Private tribes put the request in pending.
func (ts *TribeService) Join(ctx context.Context, tribeID, userID int64) (*JoinResult, error) {
	t, err := ts.Get(ctx, tribeID, userID)
	if err != nil {
		return nil, err
	}
	if t.MyStatus != "" {
		return nil, apperrors.NewConflictError("already a member or request pending")
	}

	status := MemberActive
	if t.IsPrivate {
		status = MemberPending
	}
	if err := ts.addMember(ctx, tribeID, userID, status); err != nil {
		return nil, err
	}
	return &JoinResult{TribeID: tribeID, Status: status}, nil
}

func (ts *TribeService) addMember(ctx context.Context, tribeID, userID int64, status string) error {
	tx, err := ts.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tribe_members (tribe_id, user_id, role, status, joined_at) VALUES (?, ?, ?, ?, ?)
	`, tribeID, userID, RoleMember, status, time.Now().UTC())
	if err != nil {
		if database.IsUniqueViolation(err) {
			return apperrors.NewConflictError("already a member or request pending")
		}
		return apperrors.NewInternalError("failed to join tribe", err)
	}
	if status == MemberActive {
		if err := addTribeChatParticipant(ctx, tx, tribeID, userID); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit membership", err)
	}
	return nil
}

func addTribeChatParticipant(ctx context.Context, tx *sql.Tx, tribeID, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO chat_participants (chat_id, user_id)
		SELECT id, ? FROM chats WHERE tribe_id = ?
	`, userID, tribeID)
	if err != nil {
		return apperrors.NewInternalError("failed to add chat participant", err)
	}
	return nil
}

// Leave removes userID from a tribe. The owner cannot leave.
func (ts *TribeService) Leave(ctx context.Context, tribeID, userID int64) error {
	m, err := ts.Membership(ctx, tribeID, userID)
	if err != nil {
		return err
	}
	if m == nil {
		return apperrors.NewNotFoundError("not a member of this tribe")
	}
	if m.Role == RoleOwner {
		return apperrors.NewForbiddenError("the tribe owner cannot leave the tribe")
	}

	tx, err := ts.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM tribe_members WHERE tribe_id = ? AND user_id = ?", tribeID, userID); err != nil {
		return apperrors.NewInternalError("failed to leave tribe", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM chat_participants
		WHERE user_id = ? AND chat_id IN (SELECT id FROM chats WHERE tribe_id = ?)
	`, userID, tribeID); err != nil {
		return apperrors.NewInternalError("failed to leave tribe chat", err)
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit leave", err)
	}
	return nil
}

// Approve activates a pending member. Only owners and admins may.
func (ts *TribeService) Approve(ctx context.Context, tribeID, moderatorID, userID int64) error {
	mod, err := ts.Membership(ctx, tribeID, moderatorID)
	if err != nil {
		return err
	}
	if !mod.CanModerate() {
		return apperrors.NewForbiddenError("only tribe owners and admins can approve members")
	}
	m, err := ts.Membership(ctx, tribeID, userID)
	if err != nil {
		return err
	}
	if m == nil || m.Status != MemberPending {
		return apperrors.NewNotFoundError("no pending request for this user")
	}

	tx, err := ts.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE tribe_members SET status = 'active', joined_at = ? WHERE tribe_id = ? AND user_id = ?
	`, time.Now().UTC(), tribeID, userID); err != nil {
		return apperrors.NewInternalError("failed to approve member", err)
	}
	if err := addTribeChatParticipant(ctx, tx, tribeID, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit approval", err)
	}
	return nil
}

// Members lists a tribe's members. Pending requests are only shown to moderators.
func (ts *TribeService) Members(ctx context.Context, tribeID, viewerID int64, page Page) ([]TribeMember, error) {
	if _, err := ts.Get(ctx, tribeID, viewerID); err != nil {
		return nil, err
	}
	viewer, err := ts.Membership(ctx, tribeID, viewerID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT u.id, u.username, u.display_name, u.avatar, m.role, m.status, m.joined_at
		FROM tribe_members m JOIN users u ON u.id = m.user_id
		WHERE m.tribe_id = ?`
	if !viewer.CanModerate() {
		query += " AND m.status = 'active'"
	}
	query += `
		ORDER BY CASE m.role WHEN 'owner' THEN 0 WHEN 'admin' THEN 1 ELSE 2 END, m.joined_at, u.id
		LIMIT ? OFFSET ?`

	page = page.Normalize()
	rows, err := ts.DB.QueryContext(ctx, query, tribeID, page.Limit, page.Offset)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query members", err)
	}
	defer rows.Close()

	members := []TribeMember{}
	for rows.Next() {
		var m TribeMember
		if err := rows.Scan(&m.ID, &m.Username, &m.DisplayName, &m.Avatar, &m.Role, &m.Status, &m.JoinedAt); err != nil {
			return nil, apperrors.NewInternalError("failed to scan member", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate members", err)
	}
	return members, nil
}

// ActiveMemberIDs returns the user ids of every active member.
func (ts *TribeService) ActiveMemberIDs(ctx context.Context, tribeID int64) ([]int64, error) {
	rows, err := ts.DB.QueryContext(ctx,
		"SELECT user_id FROM tribe_members WHERE tribe_id = ? AND status = 'active'", tribeID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query members", err)
	}
	return scanIDs(rows)
}

// ModeratorIDs returns the owners and admins of a tribe.
func (ts *TribeService) ModeratorIDs(ctx context.Context, tribeID int64) ([]int64, error) {
	rows, err := ts.DB.QueryContext(ctx, `
		SELECT user_id FROM tribe_members
		WHERE tribe_id = ? AND status = 'active' AND role IN ('owner', 'admin')`, tribeID)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query moderators", err)
	}
	return scanIDs(rows)
}

// ActiveTribeIDs filters tribeIDs down to those userID is an active member of.
func (ts *TribeService) ActiveTribeIDs(ctx context.Context, userID int64, tribeIDs []int64) ([]int64, error) {
	if len(tribeIDs) == 0 {
		return []int64{}, nil
	}
	query, args, err := goqu.Dialect("sqlite3").
		From("tribe_members").
		Select("tribe_id").
		Where(goqu.Ex{"user_id": userID, "status": MemberActive, "tribe_id": tribeIDs}).
		Order(goqu.I("tribe_id").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build membership query", err)
	}
	rows, err := ts.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to query memberships", err)
	}
	return scanIDs(rows)
}

// likePattern escapes q for a LIKE ... ESCAPE '\' substring match.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
