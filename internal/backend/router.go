package backend

// Family is the command set an operation is dispatched through.
type Family string

const (
	// FamilyLegacy is the connection-oriented command set (FTP/SFTP).
	FamilyLegacy Family = "legacy"
	// FamilyProvider is the generic provider command set.
	FamilyProvider Family = "provider"
)

// Operation names a backend command for routing and error reporting.
type Operation string

const (
	OpConnect        Operation = "connect"
	OpDisconnect     Operation = "disconnect"
	OpReconnect      Operation = "reconnect"
	OpList           Operation = "list"
	OpChangeDir      Operation = "change-dir"
	OpMakeDir        Operation = "make-dir"
	OpDeleteFile     Operation = "delete-file"
	OpDeleteDir      Operation = "delete-dir"
	OpRename         Operation = "rename"
	OpUpload         Operation = "upload"
	OpDownload       Operation = "download"
	OpUploadFolder   Operation = "upload-folder"
	OpDownloadFolder Operation = "download-folder"
	OpKeepAlive      Operation = "keep-alive"
	OpCheck          Operation = "check-connection"
)

// Route selects the command family for an operation on the given backend
// kind. It is a pure, total function: every operation of a provider backend
// goes through the provider family, everything else (including an unknown
// or zero kind) goes through the legacy family. An unknown kind reaching
// this point is a programming error upstream, not a runtime condition, so
// there is no error return.
func Route(kind Kind, op Operation) Family {
	_ = op // every operation of a kind currently routes the same way
	switch kind {
	case KindProvider:
		return FamilyProvider
	default:
		return FamilyLegacy
	}
}
