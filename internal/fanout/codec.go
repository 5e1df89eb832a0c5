package fanout

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"feagi/internal/model"
)

// XYZP wire format, little-endian:
//
//	u16 magic 0xFEA6, u16 version
//	u32 area count
//	per area: u8 id length, id bytes, u32 neuron count,
//	          then count * (u32 x, u32 y, u32 z, f32 p)
//
// Areas are written in cortical-ID order so identical snapshots encode to
// identical bytes.
const (
	codecMagic   = uint16(0xFEA6)
	codecVersion = uint16(1)
)

// EncodeXYZP serializes a fire snapshot, keeping only the areas whose
// cortical ID is in filter (nil filter keeps everything). Returns an empty
// slice when nothing passes the filter; silence is valid motor output.
func EncodeXYZP(snapshot model.FireSnapshot, filter map[model.CorticalID]struct{}) ([]byte, error) {
	type encodedArea struct {
		id   model.CorticalID
		fire *model.AreaFire
	}
	areas := make([]encodedArea, 0, len(snapshot))
	for _, fire := range snapshot {
		if fire.Len() == 0 {
			continue
		}
		if filter != nil {
			if _, ok := filter[fire.CorticalID]; !ok {
				continue
			}
		}
		if len(fire.X) != fire.Len() || len(fire.Y) != fire.Len() ||
			len(fire.Z) != fire.Len() || len(fire.Potentials) != fire.Len() {
			return nil, fmt.Errorf("area %s: parallel slice length mismatch", fire.CorticalID)
		}
		areas = append(areas, encodedArea{id: fire.CorticalID, fire: fire})
	}
	if len(areas) == 0 {
		return nil, nil
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].id < areas[j].id })

	var buf bytes.Buffer
	writeU16(&buf, codecMagic)
	writeU16(&buf, codecVersion)
	writeU32(&buf, uint32(len(areas)))

	for _, a := range areas {
		id := []byte(a.id)
		if len(id) > 255 {
			return nil, fmt.Errorf("cortical id too long: %s", a.id)
		}
		buf.WriteByte(byte(len(id)))
		buf.Write(id)
		writeU32(&buf, uint32(a.fire.Len()))
		for i := 0; i < a.fire.Len(); i++ {
			writeU32(&buf, a.fire.X[i])
			writeU32(&buf, a.fire.Y[i])
			writeU32(&buf, a.fire.Z[i])
			writeU32(&buf, math.Float32bits(a.fire.Potentials[i]))
		}
	}
	return buf.Bytes(), nil
}

// DecodeXYZP parses an encoded payload back into per-area frames; used by
// the CLI snapshot inspector and round-trip tests.
func DecodeXYZP(data []byte) ([]model.SensoryFrame, error) {
	r := bytes.NewReader(data)

	magic, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if magic != codecMagic {
		return nil, fmt.Errorf("bad payload magic: %#x", magic)
	}
	version, err := readU16(r)
	if err != nil {
		return nil, err
	}
	if version != codecVersion {
		return nil, fmt.Errorf("unsupported payload version: %d", version)
	}
	areaCount, err := readU32(r)
	if err != nil {
		return nil, err
	}

	frames := make([]model.SensoryFrame, 0, areaCount)
	for a := uint32(0); a < areaCount; a++ {
		idLen, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		id := make([]byte, idLen)
		if _, err := io.ReadFull(r, id); err != nil {
			return nil, err
		}
		count, err := readU32(r)
		if err != nil {
			return nil, err
		}
		frame := model.SensoryFrame{
			Area:   model.CorticalID(id),
			Points: make([]model.XYZP, 0, count),
		}
		for i := uint32(0); i < count; i++ {
			var p model.XYZP
			if p.X, err = readU32(r); err != nil {
				return nil, err
			}
			if p.Y, err = readU32(r); err != nil {
				return nil, err
			}
			if p.Z, err = readU32(r); err != nil {
				return nil, err
			}
			bits, err := readU32(r)
			if err != nil {
				return nil, err
			}
			p.Potential = math.Float32frombits(bits)
			frame.Points = append(frame.Points, p)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}
