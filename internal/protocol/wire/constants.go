package wire

// MaxMessageSize is the size of the buffer used for every control message.
//
// Commands and replies are exchanged as single socket reads/writes of at most
// this many bytes. File payloads never go through this path.
const MaxMessageSize = 4096

// Command verbs, matched case-insensitively against the first token.
const (
	VerbList = "LIST"
	VerbPut  = "PUT"
	VerbQuit = "QUIT"
)

// Literal replies.
const (
	ReplyOK             = "OK"
	ReplyUploadComplete = "SUCCESS: UPLOAD_COMPLETE"
	ErrorPrefix         = "ERROR: "

	// NoFilesSentinel is sent instead of an empty file list so that an empty
	// storage root cannot be confused with a truncated read.
	NoFilesSentinel = "Nenhum arquivo no servidor."
)

// Error reasons carried in ERROR replies.
const (
	ReasonFileExists     = "FILE_EXISTS"
	ReasonUnknownCommand = "COMANDO_INVALIDO"
	ReasonMalformedPut   = "Formato do comando PUT inválido"
	ReasonListFailed     = "LIST_FAILED"
	ReasonListTooLarge   = "LIST_TOO_LARGE"
	ReasonStorageFull    = "STORAGE_FULL"
	ReasonStorageError   = "STORAGE_ERROR"
	ReasonFileTooLarge   = "FILE_TOO_LARGE"
)
