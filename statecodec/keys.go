package statecodec

// Key is the type tag identifying a config record.
type Key uint16

// Record keys owned by the framework. Emulator cores use keys from
// KeyCoreBase upward.
const (
	KeyAutosaveLaunchMode    Key = 1   // uint8 autosave.LaunchMode
	KeyAutosaveTimerMins     Key = 2   // int16 minutes
	KeyAutosaveContent       Key = 3   // bool, save only backup memory
	KeyConfirmOverwriteState Key = 4   // bool
	KeyStateSlot             Key = 5   // int8 last used state slot
	KeyMaxRecentContent      Key = 64  // uint8
	KeyRecentContentV2       Key = 65  // uint16 path length | path | sized name
	KeyInputKeyConfigsV2     Key = 96  // key-config record
	KeyRewindStates          Key = 128 // uint32
	KeyRewindTimerSecs       Key = 129 // int16 seconds

	KeyCoreBase Key = 256
)
