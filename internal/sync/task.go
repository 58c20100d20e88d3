package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stitchflow-website/dirsync/internal/provider"
)

// Stage names one step of the pipeline
type Stage string

const (
	// StageUsers imports directory users
	StageUsers Stage = "users"

	// StageGrants imports authorization grants and derives applications
	StageGrants Stage = "grants"

	// StageScopes imports grant scopes and rates application risk
	StageScopes Stage = "scopes"
)

// Stages lists the pipeline in execution order
var Stages = []Stage{StageUsers, StageGrants, StageScopes}

// ParseStage validates a stage name
func ParseStage(name string) (Stage, error) {
	for _, s := range Stages {
		if string(s) == name {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", name)
}

// GrantRef locates a grant at the provider
type GrantRef struct {
	UserKey  string `json:"userKey"`
	ClientID string `json:"clientId"`
}

// Carryover is the data one stage produces for the next one
type Carryover struct {
	// UserIDs maps provider user ids to internal user ids. An empty map is a
	// valid carryover; only a missing one is rejected.
	UserIDs map[string]uuid.UUID `json:"userIds"`

	// SynthesizedUserKeys lists the keys of UserIDs that were made up for users
	// the provider sent without an id. Their grants cannot be fetched.
	SynthesizedUserKeys []string `json:"synthesizedUserKeys,omitempty"`

	// GrantIDs maps provider grant ids to internal grant ids
	GrantIDs map[string]uuid.UUID `json:"grantIds"`

	// GrantRefs maps provider grant ids to their provider coordinates
	GrantRefs map[string]GrantRef `json:"grantRefs,omitempty"`
}

// Task is the unit of work handed from one stage to the next
type Task struct {
	Stage          Stage                `json:"stage"`
	OrganizationID string               `json:"organizationId"`
	SyncRunID      uuid.UUID            `json:"syncRunId"`
	Credentials    provider.Credentials `json:"credentials"`
	Carryover      Carryover            `json:"carryover"`
}

// Validate reports every missing input of the task as one validation error
func (t *Task) Validate() error {
	var missing []string
	if _, err := ParseStage(string(t.Stage)); err != nil {
		missing = append(missing, "stage")
	}
	if strings.TrimSpace(t.OrganizationID) == "" {
		missing = append(missing, "organizationId")
	}
	if t.SyncRunID == uuid.Nil {
		missing = append(missing, "syncRunId")
	}
	if t.Credentials.AccessToken == "" {
		missing = append(missing, "credentials.accessToken")
	}

	switch t.Stage {
	case StageGrants:
		if t.Carryover.UserIDs == nil {
			missing = append(missing, "carryover.userIds")
		}
	case StageScopes:
		if t.Carryover.GrantIDs == nil {
			missing = append(missing, "carryover.grantIds")
		}
	}

	if len(missing) > 0 {
		return &Error{
			Kind:    ErrorKindValidation,
			Stage:   t.Stage,
			Message: "missing required input: " + strings.Join(missing, ", "),
		}
	}
	return nil
}

// DecodeTask parses a task handed over by a trigger
func DecodeTask(payload []byte) (*Task, error) {
	var task Task
	if err := json.Unmarshal(payload, &task); err != nil {
		return nil, &Error{
			Kind:    ErrorKindValidation,
			Message: "malformed stage task",
			Err:     err,
		}
	}
	return &task, nil
}

// next builds the task of the stage following t
func (t *Task) next(stage Stage, creds provider.Credentials, carryover Carryover) *Task {
	return &Task{
		Stage:          stage,
		OrganizationID: t.OrganizationID,
		SyncRunID:      t.SyncRunID,
		Credentials:    creds,
		Carryover:      carryover,
	}
}

// Trigger hands a task to the stage that executes it. It returns once the
// handoff is accepted and never waits for the stage to run.
//
//go:generate mockgen -destination=mocks/mock_trigger.go -package=mocks github.com/stitchflow-website/dirsync/internal/sync Trigger
type Trigger interface {
	Trigger(ctx context.Context, task *Task) error
}
