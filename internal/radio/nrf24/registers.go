package nrf24

// registers
const (
	REG_CONFIG      = 0x00
	REG_EN_AA       = 0x01
	REG_EN_RXADDR   = 0x02
	REG_SETUP_AW    = 0x03
	REG_SETUP_RETR  = 0x04
	REG_RF_CH       = 0x05
	REG_RF_SETUP    = 0x06
	REG_STATUS      = 0x07
	REG_RX_ADDR_P0  = 0x0A
	REG_RX_ADDR_P1  = 0x0B
	REG_TX_ADDR     = 0x10
	REG_FIFO_STATUS = 0x17
	REG_DYNPD       = 0x1C
	REG_FEATURE     = 0x1D
)

// commands
const (
	CMD_R_REGISTER   = 0x00
	CMD_W_REGISTER   = 0x20
	CMD_R_RX_PL_WID  = 0x60
	CMD_R_RX_PAYLOAD = 0x61
	CMD_W_TX_PAYLOAD = 0xA0
	CMD_FLUSH_TX     = 0xE1
	CMD_FLUSH_RX     = 0xE2
	CMD_NOP          = 0xFF
)

// bits
const (
	CONFIG_EN_CRC  = 1 << 3
	CONFIG_CRCO    = 1 << 2
	CONFIG_PWR_UP  = 1 << 1
	CONFIG_PRIM_RX = 1 << 0

	STATUS_RX_DR  = 1 << 6
	STATUS_TX_DS  = 1 << 5
	STATUS_MAX_RT = 1 << 4

	FIFO_RX_EMPTY = 1 << 0

	RF_SETUP_DR_LOW  = 1 << 5
	RF_SETUP_DR_HIGH = 1 << 3
	RF_SETUP_PWR     = 0x06

	FEATURE_EN_DPL = 1 << 2

	SETUP_AW_5_BYTES = 0x03
	ALL_PIPES        = 0x3F
)

const (
	MAX_PAYLOAD_SIZE = 32
	ADDRESS_WIDTH    = 5
	RX_PIPE          = 1
)
