// Package wireless contains constants from the Linux Wireless Extensions
// user space API (linux/wireless.h) and kernel driver API (net/iw_handler.h).
//
// WARNING: THIS IS MANUALLY CREATED. golang.org/x/sys/unix DOES NOT EXPORT
// THE SIOCxIWxxx IOCTL FAMILY OR THE IW_* LIMITS.
package wireless

// Driver API version, IW_HANDLER_VERSION, and user space API version,
// WIRELESS_EXT.
const (
	HandlerVersion = 2
	WirelessExt    = 16
)

// Standard ioctl range.
const (
	SIOCIWFIRST = 0x8B00
	SIOCIWLAST  = 0x8BDF

	SIOCIWFIRSTPRIV = 0x8BE0
	SIOCIWLASTPRIV  = 0x8BFF

	IWEVFIRST = 0x8C00
)

// Standard ioctls.
const (
	SIOCSIWCOMMIT = 0x8B00
	SIOCGIWNAME   = 0x8B01

	SIOCSIWNWID = 0x8B02
	SIOCGIWNWID = 0x8B03
	SIOCSIWFREQ = 0x8B04
	SIOCGIWFREQ = 0x8B05
	SIOCSIWMODE = 0x8B06
	SIOCGIWMODE = 0x8B07
	SIOCSIWSENS = 0x8B08
	SIOCGIWSENS = 0x8B09

	SIOCSIWRANGE = 0x8B0A
	SIOCGIWRANGE = 0x8B0B
	SIOCSIWPRIV  = 0x8B0C
	SIOCGIWPRIV  = 0x8B0D
	SIOCSIWSTATS = 0x8B0E
	SIOCGIWSTATS = 0x8B0F

	SIOCSIWSPY    = 0x8B10
	SIOCGIWSPY    = 0x8B11
	SIOCSIWTHRSPY = 0x8B12
	SIOCGIWTHRSPY = 0x8B13

	SIOCSIWAP     = 0x8B14
	SIOCGIWAP     = 0x8B15
	SIOCGIWAPLIST = 0x8B17
	SIOCSIWSCAN   = 0x8B18
	SIOCGIWSCAN   = 0x8B19

	SIOCSIWESSID = 0x8B1A
	SIOCGIWESSID = 0x8B1B
	SIOCSIWNICKN = 0x8B1C
	SIOCGIWNICKN = 0x8B1D

	SIOCSIWRATE  = 0x8B20
	SIOCGIWRATE  = 0x8B21
	SIOCSIWRTS   = 0x8B22
	SIOCGIWRTS   = 0x8B23
	SIOCSIWFRAG  = 0x8B24
	SIOCGIWFRAG  = 0x8B25
	SIOCSIWTXPOW = 0x8B26
	SIOCGIWTXPOW = 0x8B27
	SIOCSIWRETRY = 0x8B28
	SIOCGIWRETRY = 0x8B29

	SIOCSIWENCODE = 0x8B2A
	SIOCGIWENCODE = 0x8B2B
	SIOCSIWPOWER  = 0x8B2C
	SIOCGIWPOWER  = 0x8B2D
)

// Events.
const (
	IWEVTXDROP     = 0x8C00
	IWEVQUAL       = 0x8C01
	IWEVCUSTOM     = 0x8C02
	IWEVREGISTERED = 0x8C03
	IWEVEXPIRED    = 0x8C04
)

// Payload limits.
const (
	IW_ESSID_MAX_SIZE      = 32
	IW_ENCODING_TOKEN_MAX  = 64
	IW_MAX_SPY             = 8
	IW_MAX_AP              = 64
	IW_CUSTOM_MAX          = 256
	IW_SCAN_MAX_RESULTS    = 64
	IW_SCAN_RESULT_SIZE    = 32
	IW_SCAN_REQ_SIZE       = 72
	IW_RANGE_SIZE          = 512
	IW_STATS_SIZE          = 32
	IW_PRIV_ARGS_SIZE      = 24
	IW_MAX_PRIV_DEF        = 128
	IW_SOCKADDR_SIZE       = 16
	IW_QUALITY_SIZE        = 4
	IW_THRSPY_SIZE         = 28
	IW_PRIV_ARGS_NAME_SIZE = 16
)

// Private argument type descriptors, iw_priv_args.set_args/get_args.
const (
	IW_PRIV_TYPE_MASK  = 0x7000
	IW_PRIV_TYPE_NONE  = 0x0000
	IW_PRIV_TYPE_BYTE  = 0x1000
	IW_PRIV_TYPE_CHAR  = 0x2000
	IW_PRIV_TYPE_INT   = 0x4000
	IW_PRIV_TYPE_FLOAT = 0x5000
	IW_PRIV_TYPE_ADDR  = 0x6000

	IW_PRIV_SIZE_FIXED = 0x0800
	IW_PRIV_SIZE_MASK  = 0x07FF
)

// Operating modes, SIOCSIWMODE.
const (
	IW_MODE_AUTO    = 0
	IW_MODE_ADHOC   = 1
	IW_MODE_INFRA   = 2
	IW_MODE_MASTER  = 3
	IW_MODE_REPEAT  = 4
	IW_MODE_SECOND  = 5
	IW_MODE_MONITOR = 6
)

// Encoding flags, iw_point.flags for SIOCxIWENCODE.
const (
	IW_ENCODE_INDEX    = 0x00FF
	IW_ENCODE_DISABLED = 0x8000
	IW_ENCODE_NOKEY    = 0x0800
)

// ARPHRD_ETHER, the sockaddr family carried by hardware address payloads.
const ARPHRD_ETHER = 1
