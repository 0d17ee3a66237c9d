// Package pedalconf is the binary Configuration Codec (spec §4.7): it
// persists the list of FootPedalConfigurations the Input Device Coordinator
// hands to DictationMode.
//
// The wire layout is ported byte-for-byte from
// original_source/footPedal.cpp's saveFootpedalConfiguration /
// loadFootpedalConfiguration / getFootpedalConfigurationFileVersion, using
// encoding/binary in place of the original's raw fwrite/fread of C structs.
package pedalconf

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mpharoah/openscribe/internal/pedal"
)

// header is the current format's 7-byte magic: "OSFCv" followed by two ASCII
// digits encoding the version (currently "02").
const header = "OSFCv02"

// ErrLegacyFormat is returned (wrapped) by Load for a file pre-dating the
// versioned header (original_source's un-prefixed format), which
// DetectVersion reports as version 1.
var ErrLegacyFormat = errors.New("pedalconf: legacy (unversioned) configuration file")

// DetectVersion reports the on-disk format version, mirroring
// getFootpedalConfigurationFileVersion: fewer than 7 bytes, or a non-"OSFCv"
// prefix, means the legacy pre-versioned format (version 1).
func DetectVersion(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	buf := make([]byte, 7)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}
	if n < 7 {
		return 1, nil
	}
	if string(buf[:5]) != "OSFCv" {
		return 1, nil
	}

	tens := int(buf[5] - '0')
	ones := int(buf[6] - '0')
	if tens < 0 || tens > 9 || ones < 0 || ones > 9 {
		return 1, nil
	}
	return tens*10 + ones, nil
}

// Save writes configs to path in the current (v2) format.
func Save(path string, configs []*pedal.FootPedalConfiguration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("pedalconf: create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(header); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(configs))); err != nil {
		return err
	}

	for _, conf := range configs {
		if err := writeConfig(w, conf); err != nil {
			return err
		}
	}

	return w.Flush()
}

func writeConfig(w io.Writer, conf *pedal.FootPedalConfiguration) error {
	name := []byte(conf.Info.Name)
	if len(name) > 255 {
		name = name[:255]
	}
	if err := binary.Write(w, binary.LittleEndian, uint8(len(name))); err != nil {
		return err
	}
	if _, err := w.Write(name); err != nil {
		return err
	}

	nb := uint16(conf.Info.NumButtons())
	na := uint16(conf.Info.NumAxes())
	if err := binary.Write(w, binary.LittleEndian, nb); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, na); err != nil {
		return err
	}

	buttonCodes, axisCodes := orderedCodes(conf.Info)
	for _, code := range buttonCodes {
		if err := binary.Write(w, binary.LittleEndian, code); err != nil {
			return err
		}
	}
	for _, code := range axisCodes {
		if err := binary.Write(w, binary.LittleEndian, code); err != nil {
			return err
		}
	}

	for i := 0; i < int(nb); i++ {
		if err := writeAction(w, conf.PrimaryButtonActions[i]); err != nil {
			return err
		}
		if err := writeAction(w, conf.SecondaryButtonActions[i]); err != nil {
			return err
		}
	}

	for i := 0; i < int(na); i++ {
		inv := uint8(0)
		if conf.IsInverted[i] {
			inv = 1
		}
		if err := binary.Write(w, binary.LittleEndian, inv); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, conf.Deadzone[i]); err != nil {
			return err
		}
		if err := writeAction(w, conf.PrimaryAxisActions[i]); err != nil {
			return err
		}
		if err := writeAction(w, conf.SecondaryAxisActions[i]); err != nil {
			return err
		}
	}

	return nil
}

// writeAction writes a tag byte, followed by one signed amount byte only for
// the two tags that carry a payload (Skip, ChangeSlowSpeed) — matching the
// original's FPC_WRITE_ACTION macro exactly.
func writeAction(w io.Writer, a pedal.Action) error {
	if err := binary.Write(w, binary.LittleEndian, uint8(a.Tag)); err != nil {
		return err
	}
	if a.Tag == pedal.Skip || a.Tag == pedal.ChangeSlowSpeed {
		if err := binary.Write(w, binary.LittleEndian, a.Amount); err != nil {
			return err
		}
	}
	return nil
}

// Load reads configs from path, auto-detecting the legacy pre-versioned
// format (which this codec cannot decode: the original's pre-v2 layout
// lacked per-axis deadzones and is intentionally not round-tripped here).
func Load(path string) ([]*pedal.FootPedalConfiguration, error) {
	version, err := DetectVersion(path)
	if err != nil {
		return nil, err
	}
	if version < 2 {
		return nil, fmt.Errorf("pedalconf: %s: %w", path, ErrLegacyFormat)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pedalconf: open %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	got := make([]byte, 7)
	if _, err := io.ReadFull(r, got); err != nil {
		return nil, fmt.Errorf("pedalconf: read header: %w", err)
	}
	if string(got) != header {
		return nil, fmt.Errorf("pedalconf: %s: unsupported header %q", path, got)
	}

	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("pedalconf: read device count: %w", err)
	}

	configs := make([]*pedal.FootPedalConfiguration, 0, count)
	for i := uint16(0); i < count; i++ {
		conf, err := readConfig(r)
		if err != nil {
			return nil, fmt.Errorf("pedalconf: device %d: %w", i, err)
		}
		configs = append(configs, conf)
	}

	return configs, nil
}

func readConfig(r io.Reader) (*pedal.FootPedalConfiguration, error) {
	var nameLen uint8
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	nameBuf := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBuf); err != nil {
		return nil, err
	}

	var nb, na uint16
	if err := binary.Read(r, binary.LittleEndian, &nb); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.LittleEndian, &na); err != nil {
		return nil, err
	}

	buttonCodes := make([]uint16, nb)
	for i := range buttonCodes {
		if err := binary.Read(r, binary.LittleEndian, &buttonCodes[i]); err != nil {
			return nil, err
		}
	}
	axisCodes := make([]uint16, na)
	for i := range axisCodes {
		if err := binary.Read(r, binary.LittleEndian, &axisCodes[i]); err != nil {
			return nil, err
		}
	}

	info := pedal.PedalInfo{
		Name:    string(nameBuf),
		Buttons: codeMap(buttonCodes),
		Axes:    codeMap(axisCodes),
	}
	conf := pedal.NewFootPedalConfiguration(info)

	for i := 0; i < int(nb); i++ {
		primary, err := readAction(r)
		if err != nil {
			return nil, err
		}
		secondary, err := readAction(r)
		if err != nil {
			return nil, err
		}
		conf.PrimaryButtonActions[i] = primary
		conf.SecondaryButtonActions[i] = secondary
	}

	for i := 0; i < int(na); i++ {
		var inv uint8
		if err := binary.Read(r, binary.LittleEndian, &inv); err != nil {
			return nil, err
		}
		var deadzone int32
		if err := binary.Read(r, binary.LittleEndian, &deadzone); err != nil {
			return nil, err
		}
		primary, err := readAction(r)
		if err != nil {
			return nil, err
		}
		secondary, err := readAction(r)
		if err != nil {
			return nil, err
		}

		conf.IsInverted[i] = inv != 0
		conf.Deadzone[i] = deadzone
		conf.PrimaryAxisActions[i] = primary
		conf.SecondaryAxisActions[i] = secondary
	}

	return conf, nil
}

func readAction(r io.Reader) (pedal.Action, error) {
	var tag uint8
	if err := binary.Read(r, binary.LittleEndian, &tag); err != nil {
		return pedal.Action{}, err
	}

	a := pedal.Action{Tag: pedal.ActionTag(tag)}
	if a.Tag == pedal.Skip || a.Tag == pedal.ChangeSlowSpeed {
		if err := binary.Read(r, binary.LittleEndian, &a.Amount); err != nil {
			return pedal.Action{}, err
		}
	}
	return a, nil
}

func codeMap(codes []uint16) map[uint16]uint16 {
	m := make(map[uint16]uint16, len(codes))
	for i, code := range codes {
		m[code] = uint16(i)
	}
	return m
}

// orderedCodes returns info's button and axis event codes in ascending
// dense-index order, the inverse of the code->index maps built at probe
// time, so encode/decode round-trips the index assignment exactly.
func orderedCodes(info pedal.PedalInfo) (buttons, axes []uint16) {
	buttons = make([]uint16, len(info.Buttons))
	for code, idx := range info.Buttons {
		buttons[idx] = code
	}
	axes = make([]uint16, len(info.Axes))
	for code, idx := range info.Axes {
		axes[idx] = code
	}
	return buttons, axes
}
