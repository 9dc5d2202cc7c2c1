package constant

// Capability labels checked against the role table.
const (
	CapStaff         = "staff"
	CapAdmin         = "admin"
	CapWarn          = "warn"
	CapKick          = "kick"
	CapTempBan       = "tempban"
	CapPermBan       = "permban"
	CapCommend       = "commend"
	CapNote          = "note"
	CapRemoveWarn    = "removewarn"
	CapRemoveKick    = "removekick"
	CapRemoveBan     = "removeban"
	CapRemoveCommend = "removecommend"
	CapRemoveNote    = "removenote"
)
