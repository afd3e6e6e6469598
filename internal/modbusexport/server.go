package modbusexport

import (
	"time"

	"github.com/simonvetter/modbus"
	"go.uber.org/zap"
)

const (
	CLIENT_TIMEOUT = 30 * time.Second
	MAX_CLIENTS    = 5
)

// Server exposes a RegisterBank over Modbus TCP. Only input registers are served.
type Server struct {
	server *modbus.ModbusServer
	bank   *RegisterBank
	logger *zap.Logger
}

type handler struct {
	bank   *RegisterBank
	logger *zap.Logger
}

func NewServer(listen string, bank *RegisterBank, logger *zap.Logger) (*Server, error) {
	logger = logger.With(zap.String("target", "modbus"))
	server, err := modbus.NewServer(&modbus.ServerConfiguration{
		URL:        listen,
		Timeout:    CLIENT_TIMEOUT,
		MaxClients: MAX_CLIENTS,
	}, &handler{bank: bank, logger: logger})
	if err != nil {
		return nil, err
	}
	return &Server{
		server: server,
		bank:   bank,
		logger: logger,
	}, nil
}

func (s *Server) Start() error {
	return s.server.Start()
}

func (s *Server) Stop() error {
	return s.server.Stop()
}

func (h *handler) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *handler) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *handler) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	return nil, modbus.ErrIllegalFunction
}

func (h *handler) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	res, err := h.bank.Read(req.Addr, req.Quantity)
	if err != nil {
		h.logger.Debug("read of unmapped registers",
			zap.String("client", req.ClientAddr), zap.Uint16("addr", req.Addr), zap.Uint16("quantity", req.Quantity))
	}
	return res, err
}
