package wext

import (
	"fmt"
	"sort"

	"github.com/mdlayher/wext/internal/wireless"
)

// A Command is a Wireless Extensions command code. Standard commands are
// well-known, private commands are defined by each driver and events are
// unsolicited notifications.
type Command uint16

// Standard commands. SET commands have even codes and GET commands odd codes.
const (
	CmdCommit    Command = wireless.SIOCSIWCOMMIT
	CmdGetName   Command = wireless.SIOCGIWNAME
	CmdSetNWID   Command = wireless.SIOCSIWNWID
	CmdGetNWID   Command = wireless.SIOCGIWNWID
	CmdSetFreq   Command = wireless.SIOCSIWFREQ
	CmdGetFreq   Command = wireless.SIOCGIWFREQ
	CmdSetMode   Command = wireless.SIOCSIWMODE
	CmdGetMode   Command = wireless.SIOCGIWMODE
	CmdSetSens   Command = wireless.SIOCSIWSENS
	CmdGetSens   Command = wireless.SIOCGIWSENS
	CmdSetRange  Command = wireless.SIOCSIWRANGE
	CmdGetRange  Command = wireless.SIOCGIWRANGE
	CmdSetPriv   Command = wireless.SIOCSIWPRIV
	CmdGetPriv   Command = wireless.SIOCGIWPRIV
	CmdSetStats  Command = wireless.SIOCSIWSTATS
	CmdGetStats  Command = wireless.SIOCGIWSTATS
	CmdSetSpy    Command = wireless.SIOCSIWSPY
	CmdGetSpy    Command = wireless.SIOCGIWSPY
	CmdSetThrSpy Command = wireless.SIOCSIWTHRSPY
	CmdGetThrSpy Command = wireless.SIOCGIWTHRSPY
	CmdSetAP     Command = wireless.SIOCSIWAP
	CmdGetAP     Command = wireless.SIOCGIWAP
	CmdGetAPList Command = wireless.SIOCGIWAPLIST
	CmdSetScan   Command = wireless.SIOCSIWSCAN
	CmdGetScan   Command = wireless.SIOCGIWSCAN
	CmdSetESSID  Command = wireless.SIOCSIWESSID
	CmdGetESSID  Command = wireless.SIOCGIWESSID
	CmdSetNick   Command = wireless.SIOCSIWNICKN
	CmdGetNick   Command = wireless.SIOCGIWNICKN
	CmdSetRate   Command = wireless.SIOCSIWRATE
	CmdGetRate   Command = wireless.SIOCGIWRATE
	CmdSetRTS    Command = wireless.SIOCSIWRTS
	CmdGetRTS    Command = wireless.SIOCGIWRTS
	CmdSetFrag   Command = wireless.SIOCSIWFRAG
	CmdGetFrag   Command = wireless.SIOCGIWFRAG
	CmdSetTxPow  Command = wireless.SIOCSIWTXPOW
	CmdGetTxPow  Command = wireless.SIOCGIWTXPOW
	CmdSetRetry  Command = wireless.SIOCSIWRETRY
	CmdGetRetry  Command = wireless.SIOCGIWRETRY
	CmdSetEncode Command = wireless.SIOCSIWENCODE
	CmdGetEncode Command = wireless.SIOCGIWENCODE
	CmdSetPower  Command = wireless.SIOCSIWPOWER
	CmdGetPower  Command = wireless.SIOCGIWPOWER
)

// Command ranges.
const (
	FirstStandard Command = wireless.SIOCIWFIRST
	LastStandard  Command = wireless.SIOCIWLAST
	FirstPrivate  Command = wireless.SIOCIWFIRSTPRIV
	LastPrivate   Command = wireless.SIOCIWLASTPRIV
	FirstEvent    Command = wireless.IWEVFIRST
	LastEvent     Command = wireless.IWEVFIRST + 0x1F
)

// Event commands.
const (
	EventTxDrop     Command = wireless.IWEVTXDROP
	EventCustom     Command = wireless.IWEVCUSTOM
	EventRegistered Command = wireless.IWEVREGISTERED
	EventExpired    Command = wireless.IWEVEXPIRED
)

// Private returns the private command at index i.
func Private(i int) Command { return FirstPrivate + Command(i) }

// Standard reports whether c is in the standard command range.
func (c Command) Standard() bool { return c >= FirstStandard && c <= LastStandard }

// Private reports whether c is in the driver-private command range.
func (c Command) Private() bool { return c >= FirstPrivate && c <= LastPrivate }

// Event reports whether c is in the event range.
func (c Command) Event() bool { return c >= FirstEvent && c <= LastEvent }

// IsSet reports whether c modifies configuration.
func (c Command) IsSet() bool { return c&1 == 0 }

// IsGet reports whether c retrieves configuration.
func (c Command) IsGet() bool { return c&1 == 1 }

// String returns the string representation of a Command.
func (c Command) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	if c.Private() {
		return fmt.Sprintf("SIOCIWFIRSTPRIV+%d", c-FirstPrivate)
	}

	return fmt.Sprintf("unknown(0x%04x)", uint16(c))
}

// ParseCommand parses the name of a standard command or event, such as
// "SIOCGIWFREQ".
func ParseCommand(s string) (Command, bool) {
	for c, name := range commandNames {
		if name == s {
			return c, true
		}
	}

	return 0, false
}

var commandNames = map[Command]string{
	CmdCommit:    "SIOCSIWCOMMIT",
	CmdGetName:   "SIOCGIWNAME",
	CmdSetNWID:   "SIOCSIWNWID",
	CmdGetNWID:   "SIOCGIWNWID",
	CmdSetFreq:   "SIOCSIWFREQ",
	CmdGetFreq:   "SIOCGIWFREQ",
	CmdSetMode:   "SIOCSIWMODE",
	CmdGetMode:   "SIOCGIWMODE",
	CmdSetSens:   "SIOCSIWSENS",
	CmdGetSens:   "SIOCGIWSENS",
	CmdSetRange:  "SIOCSIWRANGE",
	CmdGetRange:  "SIOCGIWRANGE",
	CmdSetPriv:   "SIOCSIWPRIV",
	CmdGetPriv:   "SIOCGIWPRIV",
	CmdSetStats:  "SIOCSIWSTATS",
	CmdGetStats:  "SIOCGIWSTATS",
	CmdSetSpy:    "SIOCSIWSPY",
	CmdGetSpy:    "SIOCGIWSPY",
	CmdSetThrSpy: "SIOCSIWTHRSPY",
	CmdGetThrSpy: "SIOCGIWTHRSPY",
	CmdSetAP:     "SIOCSIWAP",
	CmdGetAP:     "SIOCGIWAP",
	CmdGetAPList: "SIOCGIWAPLIST",
	CmdSetScan:   "SIOCSIWSCAN",
	CmdGetScan:   "SIOCGIWSCAN",
	CmdSetESSID:  "SIOCSIWESSID",
	CmdGetESSID:  "SIOCGIWESSID",
	CmdSetNick:   "SIOCSIWNICKN",
	CmdGetNick:   "SIOCGIWNICKN",
	CmdSetRate:   "SIOCSIWRATE",
	CmdGetRate:   "SIOCGIWRATE",
	CmdSetRTS:    "SIOCSIWRTS",
	CmdGetRTS:    "SIOCGIWRTS",
	CmdSetFrag:   "SIOCSIWFRAG",
	CmdGetFrag:   "SIOCGIWFRAG",
	CmdSetTxPow:  "SIOCSIWTXPOW",
	CmdGetTxPow:  "SIOCGIWTXPOW",
	CmdSetRetry:  "SIOCSIWRETRY",
	CmdGetRetry:  "SIOCGIWRETRY",
	CmdSetEncode: "SIOCSIWENCODE",
	CmdGetEncode: "SIOCGIWENCODE",
	CmdSetPower:  "SIOCSIWPOWER",
	CmdGetPower:  "SIOCGIWPOWER",

	EventTxDrop:     "IWEVTXDROP",
	EventCustom:     "IWEVCUSTOM",
	EventRegistered: "IWEVREGISTERED",
	EventExpired:    "IWEVEXPIRED",
}

// Describe returns the Descriptor of a standard command. It reports false for
// codes which are not standard commands. Private commands are described by
// the PrivArgs of their driver's HandlerDef.
func Describe(c Command) (Descriptor, bool) {
	d, ok := standardTable[c]
	return d, ok
}

// StandardCommands returns every standard command in code order.
func StandardCommands() []Command {
	cmds := make([]Command, 0, len(standardTable))
	for c := range standardTable {
		cmds = append(cmds, c)
	}

	sort.Slice(cmds, func(i, j int) bool { return cmds[i] < cmds[j] })
	return cmds
}

func point(size, min, max uint16, flags DescriptorFlags) Descriptor {
	return Descriptor{
		HeaderType: HeaderTypePoint,
		TokenSize:  size,
		MinTokens:  min,
		MaxTokens:  max,
		Flags:      flags,
	}
}

var (
	scanResult = uint16(wireless.IW_SCAN_RESULT_SIZE)
	spyResult  = uint16(wireless.IW_SOCKADDR_SIZE + wireless.IW_QUALITY_SIZE)
	essidMax   = uint16(wireless.IW_ESSID_MAX_SIZE + 1)
)

// standardTable holds the metadata of every standard command. It is never
// modified after package initialization.
var standardTable = map[Command]Descriptor{
	CmdCommit:  {HeaderType: HeaderTypeNull},
	CmdGetName: {HeaderType: HeaderTypeChar},

	CmdSetNWID: {HeaderType: HeaderTypeParam, Flags: FlagEvent},
	CmdGetNWID: {HeaderType: HeaderTypeParam},
	CmdSetFreq: {HeaderType: HeaderTypeFreq, Flags: FlagEvent},
	CmdGetFreq: {HeaderType: HeaderTypeFreq},
	CmdSetMode: {HeaderType: HeaderTypeUint, Flags: FlagEvent},
	CmdGetMode: {HeaderType: HeaderTypeUint},
	CmdSetSens: {HeaderType: HeaderTypeParam},
	CmdGetSens: {HeaderType: HeaderTypeParam},

	CmdSetRange: {HeaderType: HeaderTypeNull},
	CmdGetRange: point(1, 0, wireless.IW_RANGE_SIZE, FlagDump),
	CmdSetPriv:  {HeaderType: HeaderTypeNull},
	CmdGetPriv:  point(wireless.IW_PRIV_ARGS_SIZE, 0, wireless.IW_MAX_PRIV_DEF, FlagDump),
	CmdSetStats: {HeaderType: HeaderTypeNull},
	CmdGetStats: point(1, 0, wireless.IW_STATS_SIZE, FlagDump),

	CmdSetSpy:    point(wireless.IW_SOCKADDR_SIZE, 0, wireless.IW_MAX_SPY, 0),
	CmdGetSpy:    point(spyResult, 0, wireless.IW_MAX_SPY, FlagDump),
	CmdSetThrSpy: point(wireless.IW_THRSPY_SIZE, 1, 1, 0),
	CmdGetThrSpy: point(wireless.IW_THRSPY_SIZE, 1, 1, FlagDump),

	CmdSetAP:     {HeaderType: HeaderTypeAddr, Flags: FlagEvent},
	CmdGetAP:     {HeaderType: HeaderTypeAddr},
	CmdGetAPList: point(spyResult, 0, wireless.IW_MAX_AP, FlagDump),
	CmdSetScan:   point(1, 0, wireless.IW_SCAN_REQ_SIZE, 0),
	CmdGetScan:   point(scanResult, 0, wireless.IW_SCAN_MAX_RESULTS, FlagDump),

	CmdSetESSID: point(1, 0, essidMax, FlagEvent),
	CmdGetESSID: point(1, 0, essidMax, 0),
	CmdSetNick:  point(1, 0, essidMax, 0),
	CmdGetNick:  point(1, 0, essidMax, 0),

	CmdSetRate:  {HeaderType: HeaderTypeParam},
	CmdGetRate:  {HeaderType: HeaderTypeParam},
	CmdSetRTS:   {HeaderType: HeaderTypeParam},
	CmdGetRTS:   {HeaderType: HeaderTypeParam},
	CmdSetFrag:  {HeaderType: HeaderTypeParam},
	CmdGetFrag:  {HeaderType: HeaderTypeParam},
	CmdSetTxPow: {HeaderType: HeaderTypeParam},
	CmdGetTxPow: {HeaderType: HeaderTypeParam},
	CmdSetRetry: {HeaderType: HeaderTypeParam},
	CmdGetRetry: {HeaderType: HeaderTypeParam},

	CmdSetEncode: point(1, 0, wireless.IW_ENCODING_TOKEN_MAX, FlagEvent|FlagRestrict),
	CmdGetEncode: point(1, 0, wireless.IW_ENCODING_TOKEN_MAX, FlagDump|FlagRestrict),
	CmdSetPower:  {HeaderType: HeaderTypeParam},
	CmdGetPower:  {HeaderType: HeaderTypeParam},
}
