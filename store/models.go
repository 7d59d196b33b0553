// Package store is the bun-backed persistence layer. It fetches the facts
// (ownership, membership, assignment) the authorization policy consumes, and
// owns all CRUD queries; it never makes access decisions itself.
package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a provisioned account row keyed by the IdP subject.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	KeycloakID string    `bun:"keycloak_id,notnull,unique" json:"keycloak_id"`
	Email      string    `bun:"email,notnull,unique" json:"email"`
	FirstName  *string   `bun:"first_name" json:"first_name,omitempty"`
	LastName   *string   `bun:"last_name" json:"last_name,omitempty"`
	IsActive   bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
}

type Project struct {
	bun.BaseModel `bun:"table:projects,alias:p"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	Name        string     `bun:"name,notnull" json:"name"`
	Description *string    `bun:"description" json:"description,omitempty"`
	OwnerID     uuid.UUID  `bun:"owner_id,notnull,type:uuid" json:"owner_id"`
	Status      string     `bun:"status,notnull,default:'active'" json:"status"`
	StartDate   *time.Time `bun:"start_date" json:"start_date,omitempty"`
	EndDate     *time.Time `bun:"end_date" json:"end_date,omitempty"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
}

// ProjectMember links a user to a project with a per-project role.
// The "MANAGER" role here is what grants the scoped-manager access fact.
type ProjectMember struct {
	bun.BaseModel `bun:"table:project_members,alias:pm"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	ProjectID uuid.UUID `bun:"project_id,notnull,type:uuid" json:"project_id"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Role      string    `bun:"role,notnull,default:'member'" json:"role"`
	JoinedAt  time.Time `bun:"joined_at,nullzero,notnull,default:now()" json:"joined_at"`

	User *User `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
}

type Task struct {
	bun.BaseModel `bun:"table:tasks,alias:t"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	ProjectID   uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id"`
	Title       string     `bun:"title,notnull" json:"title"`
	Description *string    `bun:"description" json:"description,omitempty"`
	AssignedTo  *uuid.UUID `bun:"assigned_to,type:uuid" json:"assigned_to,omitempty"`
	CreatedBy   uuid.UUID  `bun:"created_by,notnull,type:uuid" json:"created_by"`
	Status      string     `bun:"status,notnull,default:'todo'" json:"status"`
	Priority    string     `bun:"priority,notnull,default:'medium'" json:"priority"`
	DueDate     *time.Time `bun:"due_date" json:"due_date,omitempty"`
	External    bool       `bun:"external,notnull,default:false" json:"external"`
	Billable    bool       `bun:"billable,notnull,default:true" json:"billable"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
}

// TimeEntry records tracked time against a task. EndTime is nil while the
// entry is running; IsRunning mirrors that for cheap filtering.
type TimeEntry struct {
	bun.BaseModel `bun:"table:time_entries,alias:te"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID      uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	TaskID      uuid.UUID  `bun:"task_id,notnull,type:uuid" json:"task_id"`
	ProjectID   uuid.UUID  `bun:"project_id,notnull,type:uuid" json:"project_id"`
	Description *string    `bun:"description" json:"description,omitempty"`
	StartTime   time.Time  `bun:"start_time,notnull" json:"start_time"`
	EndTime     *time.Time `bun:"end_time" json:"end_time,omitempty"`
	IsRunning   bool       `bun:"is_running,notnull,default:false" json:"is_running"`
	External    bool       `bun:"external,notnull,default:false" json:"external"`
	Billable    bool       `bun:"billable,notnull,default:true" json:"billable"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`

	Project *Project `bun:"rel:belongs-to,join:project_id=id" json:"project,omitempty"`
}

type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	TaskID    uuid.UUID `bun:"task_id,notnull,type:uuid" json:"task_id"`
	UserID    uuid.UUID `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Content   string    `bun:"content,notnull" json:"content"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
}

type Notification struct {
	bun.BaseModel `bun:"table:notifications,alias:n"`

	ID               uuid.UUID  `bun:"id,pk,type:uuid" json:"id"`
	UserID           uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id"`
	Type             string     `bun:"type,notnull" json:"type"`
	Title            string     `bun:"title,notnull" json:"title"`
	Message          string     `bun:"message,notnull" json:"message"`
	IsRead           bool       `bun:"is_read,notnull,default:false" json:"is_read"`
	ActorID          *uuid.UUID `bun:"actor_id,type:uuid" json:"actor_id,omitempty"`
	RelatedTaskID    *uuid.UUID `bun:"related_task_id,type:uuid" json:"related_task_id,omitempty"`
	RelatedProjectID *uuid.UUID `bun:"related_project_id,type:uuid" json:"related_project_id,omitempty"`
	RelatedCommentID *uuid.UUID `bun:"related_comment_id,type:uuid" json:"related_comment_id,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	ReadAt           *time.Time `bun:"read_at" json:"read_at,omitempty"`
}

// Customer is a billing counterpart for external work. Rows are seeded by
// an import, not created through the API.
type Customer struct {
	bun.BaseModel `bun:"table:customers,alias:cu"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"customer_name,notnull" json:"customer_name"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`
}

// Order groups billable items under a customer. Reference is the
// customer-facing order number, distinct from the row id.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	CustomerID  uuid.UUID `bun:"customer_id,notnull,type:uuid" json:"customer_id"`
	Reference   *string   `bun:"order_id" json:"order_id,omitempty"`
	Description *string   `bun:"description" json:"description,omitempty"`
	Comment     *string   `bun:"comment" json:"comment,omitempty"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:now()" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:now()" json:"updated_at"`

	Customer *Customer `bun:"rel:belongs-to,join:customer_id=id" json:"customer,omitempty"`
}

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OrderID        uuid.UUID `bun:"order_id,notnull,type:uuid" json:"order_id"`
	PricePerUnit   *float64  `bun:"price_per_unit" json:"price_per_unit,omitempty"`
	Units          *int      `bun:"units" json:"units,omitempty"`
	Description    *string   `bun:"description" json:"description,omitempty"`
	Comment        *string   `bun:"comment" json:"comment,omitempty"`
	MaterialNumber *string   `bun:"material_number" json:"material_number,omitempty"`
}

// Notification types used by the fan-out worker.
const (
	NotificationCommentAdded = "comment_added"
	NotificationTaskAssigned = "task_assigned"
	NotificationMemberAdded  = "member_added"
)
