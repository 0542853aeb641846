// Package echo converts Simrad EK60-family .raw survey files into
// standardized echo records and derives calibrated, binned backscatter
// products from them.
package echo

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/seaward/echoflow/internal/dataset"
)

// Datagram type labels used in the raw framing.
const (
	TypeConfig = "CON0"
	TypeRaw    = "RAW0"
	TypeNMEA   = "NME0"
)

const (
	// channelIDLen is the fixed width of the channel label in CON0.
	channelIDLen = 128

	// PowerStep converts stored int16 power counts to dB.
	PowerStep = 10.0 * 0.30102999566398119521 / 256.0 // 10*log10(2)/256

	// filetimeEpochOffset is 1601-01-01 -> 1970-01-01 in 100 ns ticks.
	filetimeEpochOffset = 116444736000000000

	maxDatagramLen = 64 << 20
)

// ChannelConfig carries the per-transceiver calibration parameters decoded
// from the configuration datagram. Units are SI except where noted.
type ChannelConfig struct {
	ChannelID           string
	Frequency           float64 // Hz
	Gain                float64 // dB
	PulseLength         float64 // s
	SampleInterval      float64 // s
	SoundSpeed          float64 // m/s
	Absorption          float64 // dB/m
	TransmitPower       float64 // W
	EquivalentBeamAngle float64 // dB re 1 sr
}

// Ping is the received power profile of one transmission.
type Ping struct {
	Time  time.Time
	Power []float64 // dB
}

// PositionFix is one decoded NMEA position.
type PositionFix struct {
	Time time.Time
	Lat  float64
	Lon  float64
}

// EchoRecord is the standardized in-memory form of one raw file.
type EchoRecord struct {
	Channel ChannelConfig
	Pings   []Ping
	Fixes   []PositionFix
}

// Platform returns the longitude and latitude tracks of the record.
func (r *EchoRecord) Platform() (lon, lat *dataset.Track) {
	times := make([]time.Time, len(r.Fixes))
	lons := make([]float64, len(r.Fixes))
	lats := make([]float64, len(r.Fixes))
	for i, fx := range r.Fixes {
		times[i] = fx.Time
		lons[i] = fx.Lon
		lats[i] = fx.Lat
	}
	lon = &dataset.Track{
		Name:   "longitude",
		Times:  times,
		Values: lons,
		Attrs:  map[string]string{"units": "degrees_east"},
	}
	lat = &dataset.Track{
		Name:   "latitude",
		Times:  append([]time.Time(nil), times...),
		Values: lats,
		Attrs:  map[string]string{"units": "degrees_north"},
	}
	return lon, lat
}

// ReadRaw decodes a raw echosounder file into an EchoRecord. Datagram types
// other than CON0, RAW0 and NME0 are skipped, as are sample datagrams from
// channels other than the first: the record carries only channel 1, matching
// the single transceiver block taken from CON0. A truncated trailing datagram
// is an error; a plain EOF on a datagram boundary ends the file.
func ReadRaw(r io.Reader) (*EchoRecord, error) {
	br := bufio.NewReader(r)
	rec := &EchoRecord{}
	haveConfig := false

	for {
		length, err := readInt32(br)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read datagram length: %w", err)
		}
		if length < 12 || length > maxDatagramLen {
			return nil, fmt.Errorf("bad datagram length %d", length)
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(br, payload); err != nil {
			return nil, fmt.Errorf("read datagram body: %w", err)
		}
		trailer, err := readInt32(br)
		if err != nil {
			return nil, fmt.Errorf("read datagram trailer: %w", err)
		}
		if trailer != length {
			return nil, fmt.Errorf("datagram length mismatch: header %d, trailer %d", length, trailer)
		}

		dtype := string(payload[:4])
		ts := filetimeToTime(int64(binary.LittleEndian.Uint64(payload[4:12])))
		body := payload[12:]

		switch dtype {
		case TypeConfig:
			cfg, err := parseConfig(body)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", TypeConfig, err)
			}
			rec.Channel = cfg
			haveConfig = true
		case TypeRaw:
			ping, channel, err := parseRaw(body, ts)
			if err != nil {
				return nil, fmt.Errorf("parse %s: %w", TypeRaw, err)
			}
			if channel != 1 {
				continue
			}
			rec.Pings = append(rec.Pings, ping)
		case TypeNMEA:
			if fix, ok := parseNMEA(string(body), ts); ok {
				rec.Fixes = append(rec.Fixes, fix)
			}
		}
	}

	if !haveConfig {
		return nil, errors.New("no configuration datagram")
	}
	return rec, nil
}

func readInt32(r io.Reader) (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func filetimeToTime(ft int64) time.Time {
	return time.Unix(0, (ft-filetimeEpochOffset)*100).UTC()
}

// parseConfig decodes the transceiver section of a CON0 body: a channel
// count followed, per channel, by a fixed-width channel ID and eight
// float32 calibration parameters. Only the first channel is used.
func parseConfig(body []byte) (ChannelConfig, error) {
	var cfg ChannelConfig
	if len(body) < 4 {
		return cfg, errors.New("short configuration body")
	}
	count := int(int32(binary.LittleEndian.Uint32(body[:4])))
	if count < 1 {
		return cfg, fmt.Errorf("no transceivers (count=%d)", count)
	}

	const chanLen = channelIDLen + 8*4
	if len(body) < 4+chanLen {
		return cfg, errors.New("short transceiver block")
	}
	block := body[4 : 4+chanLen]

	cfg.ChannelID = strings.TrimRight(string(block[:channelIDLen]), "\x00 ")
	f := func(i int) float64 {
		off := channelIDLen + i*4
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(block[off : off+4])))
	}
	cfg.Frequency = f(0)
	cfg.Gain = f(1)
	cfg.PulseLength = f(2)
	cfg.SampleInterval = f(3)
	cfg.SoundSpeed = f(4)
	cfg.Absorption = f(5)
	cfg.TransmitPower = f(6)
	cfg.EquivalentBeamAngle = f(7)

	if cfg.Frequency <= 0 || cfg.SampleInterval <= 0 || cfg.SoundSpeed <= 0 {
		return cfg, fmt.Errorf("implausible transceiver parameters (f=%g, dt=%g, c=%g)",
			cfg.Frequency, cfg.SampleInterval, cfg.SoundSpeed)
	}
	return cfg, nil
}

// parseRaw decodes a RAW0 body: channel number, sample count, then the
// received power samples as int16 counts. The channel number is returned so
// the caller can discard pings from transceivers other than the first.
func parseRaw(body []byte, ts time.Time) (Ping, int, error) {
	if len(body) < 6 {
		return Ping{}, 0, errors.New("short sample body")
	}
	channel := int(int16(binary.LittleEndian.Uint16(body[:2])))
	count := int(int32(binary.LittleEndian.Uint32(body[2:6])))
	if channel < 1 {
		return Ping{}, 0, fmt.Errorf("bad channel %d", channel)
	}
	if count < 0 || len(body[6:]) < count*2 {
		return Ping{}, 0, fmt.Errorf("sample count %d exceeds body", count)
	}

	power := make([]float64, count)
	for i := 0; i < count; i++ {
		raw := int16(binary.LittleEndian.Uint16(body[6+2*i : 8+2*i]))
		power[i] = float64(raw) * PowerStep
	}
	return Ping{Time: ts, Power: power}, channel, nil
}

// parseNMEA extracts a position from a GGA or GLL sentence. The fix is
// stamped with the datagram time since NMEA sentences carry no date.
func parseNMEA(sentence string, ts time.Time) (PositionFix, bool) {
	sentence = strings.TrimRight(sentence, "\r\n\x00")
	if i := strings.IndexByte(sentence, '*'); i >= 0 {
		sentence = sentence[:i]
	}
	fields := strings.Split(sentence, ",")
	if len(fields) < 6 || len(fields[0]) < 6 || fields[0][0] != '$' {
		return PositionFix{}, false
	}

	var latF, latH, lonF, lonH string
	switch fields[0][3:] {
	case "GGA":
		if len(fields) < 6 {
			return PositionFix{}, false
		}
		latF, latH, lonF, lonH = fields[2], fields[3], fields[4], fields[5]
	case "GLL":
		latF, latH, lonF, lonH = fields[1], fields[2], fields[3], fields[4]
	default:
		return PositionFix{}, false
	}

	lat, ok := parseCoord(latF, latH, 2)
	if !ok {
		return PositionFix{}, false
	}
	lon, ok := parseCoord(lonF, lonH, 3)
	if !ok {
		return PositionFix{}, false
	}
	return PositionFix{Time: ts, Lat: lat, Lon: lon}, true
}

// parseCoord converts NMEA ddmm.mmm / dddmm.mmm notation to decimal degrees.
func parseCoord(value, hemi string, degDigits int) (float64, bool) {
	if len(value) <= degDigits || hemi == "" {
		return 0, false
	}
	deg, err := strconv.ParseFloat(value[:degDigits], 64)
	if err != nil {
		return 0, false
	}
	min, err := strconv.ParseFloat(value[degDigits:], 64)
	if err != nil {
		return 0, false
	}
	out := deg + min/60
	switch hemi {
	case "S", "W":
		out = -out
	case "N", "E":
	default:
		return 0, false
	}
	return out, true
}
