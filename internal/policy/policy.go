// Package policy decides who may do what. Every function is pure: it looks
// only at the acting user's flags and, where relevant, the target game.
package policy

import (
	"indieforge/backend/internal/apperr"
	"indieforge/backend/internal/models"
)

// Action names an operation subject to authorization.
type Action string

const (
	ActionRegister       Action = "register"
	ActionViewPublished  Action = "view_published"
	ActionViewProfile    Action = "view_profile"
	ActionUpdateProfile  Action = "update_profile"
	ActionCreateGame     Action = "create_game"
	ActionUpdateGame     Action = "update_game"
	ActionPublishGame    Action = "publish_game"
	ActionDeleteGame     Action = "delete_game"
	ActionListOwnGames   Action = "list_own_games"
	ActionListAllGames   Action = "list_all_games"
	ActionDeleteAnyGame  Action = "delete_any_game"
	ActionListUsers      Action = "list_users"
	ActionChangeRole     Action = "change_role"
	ActionUseWishlist    Action = "use_wishlist"
	ActionExport         Action = "export"
	ActionViewDraft      Action = "view_draft"
	ActionDeveloperStats Action = "developer_stats"
	ActionAdminConsole   Action = "admin_console"
)

// Authorize returns nil when actor may perform action on target, or an
// apperr error explaining the denial. A nil actor is an unauthenticated guest.
// target is only consulted for game-scoped actions.
func Authorize(actor *models.User, action Action, target *models.Game) error {
	switch action {
	case ActionRegister, ActionViewPublished:
		return nil
	}

	if actor == nil {
		return apperr.Unauthenticated("Could not validate credentials")
	}

	switch action {
	case ActionViewProfile, ActionUpdateProfile, ActionUseWishlist:
		return nil

	case ActionCreateGame, ActionListOwnGames, ActionDeveloperStats:
		return requireDeveloper(actor)

	case ActionUpdateGame, ActionPublishGame:
		if err := requireDeveloper(actor); err != nil {
			return err
		}
		return requireOwnerOrAdmin(actor, target)

	case ActionDeleteGame:
		// Admins may delete any game, developer flag or not.
		if actor.IsAdmin {
			return nil
		}
		if err := requireDeveloper(actor); err != nil {
			return err
		}
		return requireOwnerOrAdmin(actor, target)

	case ActionViewDraft:
		if actor.IsAdmin {
			return nil
		}
		if target != nil && target.DeveloperID == actor.ID {
			return nil
		}
		return apperr.NotFound("Game not found")

	case ActionListAllGames, ActionDeleteAnyGame, ActionListUsers, ActionChangeRole, ActionExport, ActionAdminConsole:
		return requireAdmin(actor)
	}

	return apperr.Forbidden("Action not permitted")
}

// CanViewGame reports whether actor (possibly nil) may see target.
// Published games are public; drafts are visible to their owner and admins.
func CanViewGame(actor *models.User, target *models.Game) bool {
	if target == nil {
		return false
	}
	if target.IsPublished {
		return true
	}
	return Authorize(actor, ActionViewDraft, target) == nil
}

func requireDeveloper(actor *models.User) error {
	if !actor.IsDeveloper {
		return apperr.Forbidden("Only developers can manage games")
	}
	return nil
}

func requireAdmin(actor *models.User) error {
	if !actor.IsAdmin {
		return apperr.Forbidden("Admin access required")
	}
	return nil
}

func requireOwnerOrAdmin(actor *models.User, target *models.Game) error {
	if actor.IsAdmin {
		return nil
	}
	if target == nil || target.DeveloperID != actor.ID {
		return apperr.Forbidden("You can only manage your own games")
	}
	return nil
}
