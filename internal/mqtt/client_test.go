package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/berfenger/energylog/internal/core/domain"
	"github.com/berfenger/energylog/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	topic   string
	payload []byte
}

func (m testMessage) Duplicate() bool   { return false }
func (m testMessage) Qos() byte         { return 1 }
func (m testMessage) Retained() bool    { return false }
func (m testMessage) Topic() string     { return m.topic }
func (m testMessage) MessageID() uint16 { return 1 }
func (m testMessage) Payload() []byte   { return m.payload }
func (m testMessage) Ack()              {}

func testClient() *MQTTClient {
	cfg := util.LoadTestConfig()
	return CreateMQTTClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestTopics(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	assert.Equal("energylog/bridge/state", client.BridgeStateTopic())
	assert.Equal("energylog/sensor/meter0_power/state", client.SensorStateTopic("meter0_power"))
	assert.Equal("homeassistant/status", client.HAStatusTopic())
}

func TestIsHAOnline(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	assert.True(client.IsHAOnline(testMessage{topic: "homeassistant/status", payload: []byte("online")}))
	assert.False(client.IsHAOnline(testMessage{topic: "homeassistant/status", payload: []byte("offline")}))
	assert.False(client.IsHAOnline(testMessage{topic: "energylog/status", payload: []byte("online")}))
}

func TestSensorDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	meter := domain.MeterDevice("energylog", 0)
	sensor := domain.MeterSensors(meter, 0)[4]

	msg := GenericSensorToHADiscoveryMessage(client, sensor)
	assert.Equal("energylog/sensor/meter0_power/state", msg.StateTopic)
	assert.Equal("energylog/bridge/state", msg.AvTopic)
	assert.Equal("W", msg.UnitOfMeasurement)
	assert.Equal(domain.DEVICE_CLASS_POWER, msg.DeviceClass)
	assert.Equal("homeassistant/sensor/"+meter.Id+"/meter0_power/config", client.HADiscoverySensorTopic(sensor))

	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(string(payload), `"platform":"mqtt"`)
	assert.NotContains(string(payload), "payload_on")
}

func TestBridgeDiscoveryMessage(t *testing.T) {

	assert := assert.New(t)

	client := testClient()
	bridge := domain.BridgeSensors(domain.BridgeDevice("energylog"))[0]

	msg := GenericSensorToHADiscoveryMessage(client, bridge)
	assert.Equal(client.BridgeStateTopic(), msg.StateTopic)
	assert.Equal(MQTT_PAYLOAD_ONLINE, msg.PayloadOn)
	assert.Equal(MQTT_PAYLOAD_OFFLINE, msg.PayloadOff)
	assert.Equal("homeassistant/binary_sensor/"+bridge.Device.Id+"/bridge/config", client.HADiscoverySensorTopic(bridge))
}
