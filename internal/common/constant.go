package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Collection names in the record store.
const (
	FilesCollection = "files"
	NotesCollection = "notes"
)

// The root folder is not a real record; it is the synthetic first
// breadcrumb of every trail.
const (
	RootFolderID   = "root"
	RootFolderName = "My Drive"
)
