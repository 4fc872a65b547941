package image

// Action is an operation a principal may request on an image.
type Action string

// Actions checked by CanAccess.
const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// CanAccess is the ownership predicate for image operations. Reads are
// allowed for any authenticated principal — listing is already scoped to the
// requester at the query level. Update and delete require ownership.
// It never returns an error; callers map false to a forbidden outcome.
func CanAccess(principalID string, img *Image, action Action) bool {
	if principalID == "" || img == nil {
		return false
	}
	switch action {
	case ActionRead:
		return true
	case ActionUpdate, ActionDelete:
		return img.OwnerID == principalID
	default:
		return false
	}
}
