package tasks

import (
	"fmt"

	"github.com/desertthunder/marquee/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	FetchProfile Phase = iota
	CreateProfile
	ReadCache
	MergeCart
	FilterPurchased
	PublishCart
	ExportingLibrary
	UploadingLibrary
)

func (p Phase) String() string {
	switch p {
	case FetchProfile:
		return "fetch_profile"
	case CreateProfile:
		return "create_profile"
	case ReadCache:
		return "read_cache"
	case MergeCart:
		return "merge_cart"
	case FilterPurchased:
		return "filter_purchased"
	case PublishCart:
		return "publish_cart"
	case ExportingLibrary:
		return "export_library"
	case UploadingLibrary:
		return "upload_library"
	default:
		return ""
	}
}

// SendProgress sends update without blocking; a nil, full or unread channel drops it.
func SendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// BootstrapSteps is the number of steps reported while signing in.
const BootstrapSteps = 5

func FetchProfileUpdate(uid string) ProgressUpdate {
	return ProgressUpdate{Phase: FetchProfile, Step: 1, Total: BootstrapSteps, Message: fmt.Sprintf("Loading profile %s...", uid)}
}

func CreateProfileUpdate(uid string) ProgressUpdate {
	return ProgressUpdate{Phase: CreateProfile, Step: 1, Total: BootstrapSteps, Message: fmt.Sprintf("Creating profile %s...", uid)}
}

func ReadCacheUpdate(n int) ProgressUpdate {
	return ProgressUpdate{Phase: ReadCache, Step: 2, Total: BootstrapSteps, Message: fmt.Sprintf("Found %d movies in the local cart", n)}
}

func MergeCartUpdate(remote, local, merged int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   MergeCart,
		Step:    3,
		Total:   BootstrapSteps,
		Message: fmt.Sprintf("Merged carts: %d remote + %d local -> %d", remote, local, merged),
	}
}

func FilterPurchasedUpdate(dropped int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterPurchased,
		Step:    4,
		Total:   BootstrapSteps,
		Message: fmt.Sprintf("Removed %d already purchased movies", dropped),
	}
}

func PublishCartUpdate(cart models.Cart) ProgressUpdate {
	return ProgressUpdate{
		Phase:   PublishCart,
		Step:    5,
		Total:   BootstrapSteps,
		Message: fmt.Sprintf("Cart ready (%d movies)", cart.Len()),
		Data:    cart,
	}
}

func exportingUpdate(step, total int, format string) ProgressUpdate {
	return ProgressUpdate{Phase: ExportingLibrary, Step: step, Total: total, Message: fmt.Sprintf("[%d/%d] Exporting %s...", step, total, format)}
}

func exportCompletedUpdate(step, total int, format string, files int) ProgressUpdate {
	return ProgressUpdate{Phase: ExportingLibrary, Step: step, Total: total, Message: fmt.Sprintf("[%d/%d] ✓ %s (%d files)", step, total, format, files)}
}

func exportFailedUpdate(step, total int, format string, err error) ProgressUpdate {
	return ProgressUpdate{Phase: ExportingLibrary, Step: step, Total: total, Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, format, err)}
}

func uploadUpdate(step, total int, object string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{Phase: UploadingLibrary, Step: step, Total: total, Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, object, err)}
	}
	return ProgressUpdate{Phase: UploadingLibrary, Step: step, Total: total, Message: fmt.Sprintf("[%d/%d] ✓ uploaded %s", step, total, object)}
}
