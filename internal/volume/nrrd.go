// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package volume

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/araratmed/ararat-viewer/internal/geometry"
)

// NRRD with raw little-endian encoding. The header carries the full
// geometry (spacing and orientation folded into "space directions"), so a
// mask artifact is self-describing.

const nrrdMagic = "NRRD0004"

type nrrdHeader struct {
	typ        string
	sizes      [3]int
	directions [3][3]float64 // column vectors, spacing included
	origin     [3]float64
}

func writeHeader(w *bufio.Writer, typ string, geom *geometry.Geometry) error {
	spacing := geom.Spacing()
	dir := geom.Direction()
	shape := geom.Shape()
	origin := geom.Origin()

	fmt.Fprintln(w, nrrdMagic)
	fmt.Fprintf(w, "type: %s\n", typ)
	fmt.Fprintln(w, "dimension: 3")
	fmt.Fprintf(w, "sizes: %d %d %d\n", shape[0], shape[1], shape[2])
	fmt.Fprintln(w, "endian: little")
	fmt.Fprintln(w, "encoding: raw")
	fmt.Fprintln(w, "space dimension: 3")
	fmt.Fprint(w, "space directions:")
	for c := 0; c < 3; c++ {
		fmt.Fprintf(w, " (%.9g,%.9g,%.9g)",
			dir[0+c]*spacing[c], dir[3+c]*spacing[c], dir[6+c]*spacing[c])
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "space origin: (%.9g,%.9g,%.9g)\n", origin[0], origin[1], origin[2])
	fmt.Fprintln(w)
	return w.Flush()
}

// WriteMask writes a binary mask as uint8 NRRD.
func WriteMask(path string, m *Mask) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating mask %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeHeader(w, "uint8", m.Geom); err != nil {
		return fmt.Errorf("writing mask header: %w", err)
	}
	if _, err := w.Write(m.Data); err != nil {
		return fmt.Errorf("writing mask data: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing mask %s: %w", path, err)
	}
	return nil
}

// WriteVolume writes a scalar volume as float NRRD.
func WriteVolume(path string, v *Volume) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating volume %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := writeHeader(w, "float", v.Geom); err != nil {
		return fmt.Errorf("writing volume header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, v.Data); err != nil {
		return fmt.Errorf("writing volume data: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing volume %s: %w", path, err)
	}
	return nil
}

func parseVector(s string) ([3]float64, error) {
	var out [3]float64
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return out, fmt.Errorf("expected 3 components in %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return out, fmt.Errorf("parsing vector component %q: %w", p, err)
		}
		out[i] = v
	}
	return out, nil
}

func readHeader(r *bufio.Reader) (*nrrdHeader, error) {
	magic, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading magic: %w", err)
	}
	if strings.TrimSpace(magic) != nrrdMagic {
		return nil, fmt.Errorf("not an NRRD file (magic %q)", strings.TrimSpace(magic))
	}

	h := &nrrdHeader{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // header/data separator
		}
		if strings.HasPrefix(line, "#") {
			continue
		}

		key, val, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		val = strings.TrimSpace(val)

		switch key {
		case "type":
			h.typ = val
		case "sizes":
			fields := strings.Fields(val)
			if len(fields) != 3 {
				return nil, fmt.Errorf("sizes %q: expected 3 axes", val)
			}
			for i, f := range fields {
				n, err := strconv.Atoi(f)
				if err != nil {
					return nil, fmt.Errorf("parsing size %q: %w", f, err)
				}
				h.sizes[i] = n
			}
		case "space directions":
			vecs := strings.Fields(val)
			if len(vecs) != 3 {
				return nil, fmt.Errorf("space directions %q: expected 3 vectors", val)
			}
			for i, vs := range vecs {
				v, err := parseVector(vs)
				if err != nil {
					return nil, err
				}
				h.directions[i] = v
			}
		case "space origin":
			v, err := parseVector(val)
			if err != nil {
				return nil, err
			}
			h.origin = v
		case "encoding":
			if val != "raw" {
				return nil, fmt.Errorf("unsupported encoding %q", val)
			}
		case "endian":
			if val != "little" {
				return nil, fmt.Errorf("unsupported endian %q", val)
			}
		}
	}

	if h.sizes[0] == 0 {
		return nil, fmt.Errorf("header missing sizes")
	}
	return h, nil
}

func (h *nrrdHeader) geometry() (*geometry.Geometry, error) {
	var spacing [3]float64
	var dir [9]float64
	for c := 0; c < 3; c++ {
		v := h.directions[c]
		n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
		if n == 0 {
			return nil, fmt.Errorf("space direction %d has zero length", c)
		}
		spacing[c] = n
		dir[0+c] = v[0] / n
		dir[3+c] = v[1] / n
		dir[6+c] = v[2] / n
	}
	return geometry.New(spacing, h.origin, dir, h.sizes)
}

// ReadVolume reads a float NRRD volume.
func ReadVolume(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening volume %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if h.typ != "float" {
		return nil, fmt.Errorf("reading %s: expected float volume, got type %q", path, h.typ)
	}

	geom, err := h.geometry()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	vol := NewVolume(geom)
	if err := binary.Read(r, binary.LittleEndian, vol.Data); err != nil {
		return nil, fmt.Errorf("reading %s data: %w", path, err)
	}
	return vol, nil
}

// ReadMask reads a uint8 NRRD mask and forces values to {0, 1}.
func ReadMask(path string) (*Mask, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening mask %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if h.typ != "uint8" && h.typ != "uchar" {
		return nil, fmt.Errorf("reading %s: expected uint8 mask, got type %q", path, h.typ)
	}

	geom, err := h.geometry()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	m := NewMask(geom)
	if _, err := readFull(r, m.Data); err != nil {
		return nil, fmt.Errorf("reading %s data: %w", path, err)
	}
	for i, v := range m.Data {
		if v > 1 {
			m.Data[i] = 1
		}
	}
	return m, nil
}

func readFull(r *bufio.Reader, buf []uint8) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := r.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
