// internal/app/features/groups/requests.go
package groups

import (
	"github.com/dalemusser/grouphub/internal/app/services/registry"
	"github.com/dalemusser/grouphub/internal/domain/models"
)

type createGroupRequest struct {
	Name               string `json:"name" validate:"required,max=200" label:"Name"`
	Description        string `json:"description" validate:"max=5000" label:"Description"`
	Privacy            *int   `json:"privacy" validate:"omitempty,oneof=0 1" label:"Privacy"`
	NeedApprovedToJoin bool   `json:"need_approved_to_join"`
}

func (req createGroupRequest) input() registry.CreateInput {
	in := registry.CreateInput{
		Name:               req.Name,
		Description:        req.Description,
		Privacy:            models.PrivacyPublic,
		NeedApprovedToJoin: req.NeedApprovedToJoin,
	}
	if req.Privacy != nil {
		in.Privacy = models.Privacy(*req.Privacy)
	}
	return in
}

type updateGroupRequest struct {
	GroupID            string  `json:"group_id" validate:"required,objectid" label:"Group id"`
	Name               *string `json:"name" validate:"omitempty,max=200" label:"Name"`
	Avatar             *string `json:"avatar" validate:"omitempty,httpurl" label:"Avatar"`
	Cover              *string `json:"cover" validate:"omitempty,httpurl" label:"Cover"`
	Description        *string `json:"description" validate:"omitempty,max=5000" label:"Description"`
	Location           *string `json:"location" validate:"omitempty,max=200" label:"Location"`
	Privacy            *int    `json:"privacy" validate:"omitempty,oneof=0 1" label:"Privacy"`
	NeedApprovedToJoin *bool   `json:"need_approved_to_join"`
}

func (req updateGroupRequest) input() registry.UpdateInput {
	in := registry.UpdateInput{
		Name:               req.Name,
		Avatar:             req.Avatar,
		Cover:              req.Cover,
		Description:        req.Description,
		Location:           req.Location,
		NeedApprovedToJoin: req.NeedApprovedToJoin,
	}
	if req.Privacy != nil {
		p := models.Privacy(*req.Privacy)
		in.Privacy = &p
	}
	return in
}

type joinRequest struct {
	GroupID string `json:"group_id" validate:"required,objectid" label:"Group id"`
}

// targetRequest names a user within a group; used by ban, un-ban and kick.
type targetRequest struct {
	GroupID string `json:"group_id" validate:"required,objectid" label:"Group id"`
	UserID  string `json:"user_id" validate:"required,objectid" label:"User id"`
}

type appointRequest struct {
	GroupID string `json:"group_id" validate:"required,objectid" label:"Group id"`
	UserID  string `json:"user_id" validate:"required,objectid" label:"User id"`
	Role    string `json:"role" validate:"required" label:"Role"`
}
