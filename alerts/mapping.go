package alerts

// Friendly per-code messages for the services the client talks to. Codes not
// listed fall back to the error's own message.

var authMessages = map[string]string{
	"auth/invalid-email":          "Please enter a valid email address.",
	"auth/user-not-found":         "Invalid email or password.",
	"auth/wrong-password":         "Invalid email or password.",
	"auth/email-already-in-use":   "This email address is already in use.",
	"auth/weak-password":          "The password is too weak.",
	"auth/user-disabled":          "This account has been disabled.",
	"auth/requires-recent-login":  "Please log in again.",
	"auth/invalid-credential":     "Invalid login credentials.",
	"auth/network-request-failed": "Network error. Please check your connection.",
	"auth/too-many-requests":      "Too many attempts. Please try again later.",
	"auth/internal-error":         "An unexpected error occurred. Please try again.",
	"auth/timeout":                "The operation timed out. Please try again.",
}

var firestoreMessages = map[string]string{
	"firestore/cancelled":           "The database operation was cancelled.",
	"firestore/unknown":             "An unknown database error occurred.",
	"firestore/invalid-argument":    "Invalid data provided for the database operation.",
	"firestore/deadline-exceeded":   "The database operation timed out.",
	"firestore/not-found":           "The requested data was not found.",
	"firestore/already-exists":      "The data you are trying to create already exists.",
	"firestore/permission-denied":   "You don't have permission to perform this action.",
	"firestore/resource-exhausted":  "You have exceeded your quota for database operations.",
	"firestore/failed-precondition": "The database operation failed because of a precondition.",
	"firestore/aborted":             "The database operation was aborted.",
	"firestore/out-of-range":        "The database query parameter is out of range.",
	"firestore/unimplemented":       "The database operation is not implemented.",
	"firestore/internal":            "An internal database error occurred.",
	"firestore/unavailable":         "The database is temporarily unavailable. Please try again.",
	"firestore/data-loss":           "Potential data loss occurred during the database operation.",
	"firestore/unauthenticated":     "You must be logged in to access the database.",
}

var storageMessages = map[string]string{
	"storage/object-not-found":     "The requested file was not found.",
	"storage/unauthorized":         "You are not authorized to access this file.",
	"storage/unknown":              "An unknown storage error occurred.",
	"storage/quota-exceeded":       "Your storage quota has been exceeded.",
	"storage/unauthenticated":      "You must be logged in to access storage.",
	"storage/invalid-argument":     "Invalid argument provided for storage operation.",
	"storage/bucket-not-found":     "The storage bucket was not found.",
	"storage/retry-limit-exceeded": "File operation failed after multiple retries.",
}

func friendlyMessage(code string) string {
	if msg, ok := authMessages[code]; ok {
		return msg
	}
	if msg, ok := firestoreMessages[code]; ok {
		return msg
	}
	if msg, ok := storageMessages[code]; ok {
		return msg
	}
	return ""
}
