package common

import "time"

// AdminGroup is the group whose members may create and delete users.
const AdminGroup = "ADMIN"

const (
	// SaltSize is the length of a password salt in bytes.
	SaltSize = 8
	// IVSize is the length of a CBC initialization vector in bytes.
	IVSize = 16
	// KeySize is the length of every symmetric key (AES-256).
	KeySize = 32
	// ChallengeSize is the length of a proof-of-work challenge in bytes.
	ChallengeSize = 8
	// MaxNonceSize bounds the proof-of-work answer.
	MaxNonceSize = 8
)

// DefaultAutosaveInterval matches the periodic snapshot cadence of both services.
const DefaultAutosaveInterval = 5 * time.Minute
