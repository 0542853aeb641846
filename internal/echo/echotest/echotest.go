// Package echotest builds synthetic raw survey files for tests.
package echotest

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/seaward/echoflow/internal/echo"
)

// Channel returns plausible 38 kHz transceiver parameters.
func Channel() echo.ChannelConfig {
	return echo.ChannelConfig{
		ChannelID:           "GPT 38 kHz 009072033fa2 1-1 ES38B",
		Frequency:           38000,
		Gain:                26.5,
		PulseLength:         1.024e-3,
		SampleInterval:      256e-6,
		SoundSpeed:          1500,
		Absorption:          0.0098,
		TransmitPower:       2000,
		EquivalentBeamAngle: -20.7,
	}
}

// Fix builds a position fix at the given instant.
func Fix(t time.Time, lat, lon float64) echo.PositionFix {
	return echo.PositionFix{Time: t, Lat: lat, Lon: lon}
}

// Ping builds a ping whose power samples are representable in the raw
// int16 encoding, so decoding returns them within one quantization step.
func Ping(t time.Time, power ...float64) echo.Ping {
	return echo.Ping{Time: t, Power: power}
}

// Encode serializes a configuration datagram plus the given pings and
// fixes in the raw framing that echo.ReadRaw expects.
func Encode(cfg echo.ChannelConfig, pings []echo.Ping, fixes []echo.PositionFix) []byte {
	var buf bytes.Buffer
	writeDatagram(&buf, echo.TypeConfig, time.Unix(0, 0).UTC(), encodeConfig(cfg))
	for _, fx := range fixes {
		writeDatagram(&buf, echo.TypeNMEA, fx.Time, []byte(gll(fx.Lat, fx.Lon)))
	}
	for _, p := range pings {
		writeDatagram(&buf, echo.TypeRaw, p.Time, encodePing(1, p))
	}
	return buf.Bytes()
}

// AppendPing appends one sample datagram for the given transceiver channel.
func AppendPing(raw []byte, channel int, p echo.Ping) []byte {
	var buf bytes.Buffer
	buf.Write(raw)
	writeDatagram(&buf, echo.TypeRaw, p.Time, encodePing(channel, p))
	return buf.Bytes()
}

// EncodeUnknown appends a datagram of an unhandled type, which readers
// must skip.
func EncodeUnknown(raw []byte) []byte {
	var buf bytes.Buffer
	buf.Write(raw)
	writeDatagram(&buf, "TAG0", time.Unix(0, 0).UTC(), []byte("ignored"))
	return buf.Bytes()
}

// Truncate chops the final bytes off an encoded file to simulate a
// half-written upload.
func Truncate(raw []byte, n int) []byte {
	if n >= len(raw) {
		return nil
	}
	return raw[:len(raw)-n]
}

func writeDatagram(buf *bytes.Buffer, dtype string, ts time.Time, body []byte) {
	length := int32(12 + len(body))
	_ = binary.Write(buf, binary.LittleEndian, length)
	buf.WriteString(dtype)
	_ = binary.Write(buf, binary.LittleEndian, timeToFiletime(ts))
	buf.Write(body)
	_ = binary.Write(buf, binary.LittleEndian, length)
}

func timeToFiletime(t time.Time) int64 {
	const epochOffset = 116444736000000000
	return t.UnixNano()/100 + epochOffset
}

func encodeConfig(cfg echo.ChannelConfig) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int32(1))

	id := make([]byte, 128)
	copy(id, cfg.ChannelID)
	buf.Write(id)

	for _, v := range []float64{
		cfg.Frequency,
		cfg.Gain,
		cfg.PulseLength,
		cfg.SampleInterval,
		cfg.SoundSpeed,
		cfg.Absorption,
		cfg.TransmitPower,
		cfg.EquivalentBeamAngle,
	} {
		_ = binary.Write(&buf, binary.LittleEndian, float32(v))
	}
	return buf.Bytes()
}

func encodePing(channel int, p echo.Ping) []byte {
	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, int16(channel))
	_ = binary.Write(&buf, binary.LittleEndian, int32(len(p.Power)))
	for _, v := range p.Power {
		_ = binary.Write(&buf, binary.LittleEndian, int16(math.Round(v/echo.PowerStep)))
	}
	return buf.Bytes()
}

func gll(lat, lon float64) string {
	latHemi, lonHemi := "N", "E"
	if lat < 0 {
		latHemi, lat = "S", -lat
	}
	if lon < 0 {
		lonHemi, lon = "W", -lon
	}
	latDeg := math.Floor(lat)
	lonDeg := math.Floor(lon)
	return fmt.Sprintf("$GPGLL,%02.0f%07.4f,%s,%03.0f%07.4f,%s,120000.00,A",
		latDeg, (lat-latDeg)*60, latHemi,
		lonDeg, (lon-lonDeg)*60, lonHemi)
}
