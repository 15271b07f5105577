package keystore

// PKCS11Config holds configuration for the PKCS#11 provider
type PKCS11Config struct {
	// ModulePath is the path to the PKCS#11 library (.so/.dylib/.dll)
	ModulePath string `yaml:"modulePath"`

	// SlotID is the slot number to use (optional if SlotLabel is provided)
	SlotID *uint `yaml:"slotId"`

	// SlotLabel is the token label to search for (optional if SlotID is provided)
	SlotLabel string `yaml:"slotLabel"`

	// PIN is the user PIN for authentication
	PIN string `yaml:"pin"`

	// DefaultLabel is the key label used when no alias is configured
	DefaultLabel string `yaml:"defaultLabel"`
}
