package dto

import (
	"time"

	"github.com/ujmp/editorial-api/internal/models"
)

// WorkflowAction names the editorial operations exposed over the API.
type WorkflowAction string

const (
	ActionSubmit           WorkflowAction = "submit"
	ActionDeskReject       WorkflowAction = "desk_reject"
	ActionSendToReview     WorkflowAction = "send_to_review"
	ActionRequestRevision  WorkflowAction = "request_revision"
	ActionAccept           WorkflowAction = "accept"
	ActionReject           WorkflowAction = "reject"
	ActionMoveToProduction WorkflowAction = "move_to_production"
	ActionSchedule         WorkflowAction = "schedule"
	ActionPublish          WorkflowAction = "publish"
	ActionArchive          WorkflowAction = "archive"
)

// WorkflowActionRequest is the payload for POST /articles/{id}/actions.
type WorkflowActionRequest struct {
	Action          WorkflowAction      `json:"action" binding:"required"`
	Comments        string              `json:"comments"`
	RevisionType    models.RevisionType `json:"revision_type"`
	PublicationURL  string              `json:"publication_url"`
	PublicationDate *time.Time          `json:"publication_date"`
}

// ManuscriptUploadRequest carries a manuscript file reference and notes.
type ManuscriptUploadRequest struct {
	ManuscriptFile string `json:"manuscript_file" binding:"required"`
	Notes          string `json:"notes"`
}
