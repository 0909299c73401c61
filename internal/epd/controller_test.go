package epd

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

type record struct {
	cmd  byte
	data []byte
	// idle counts waitUntilIdle calls made after cmd.
	idle int
}

type fakeController []record

func (r *fakeController) sendCommand(cmd byte) {
	*r = append(*r, record{
		cmd: cmd,
	})
}

func (r *fakeController) sendData(data []byte) {
	cur := &(*r)[len(*r)-1]
	cur.data = append(cur.data, data...)
}

func (r *fakeController) waitUntilIdle() {
	if len(*r) == 0 {
		return
	}
	(*r)[len(*r)-1].idle++
}

func lutRecords(table WaveformTable) []record {
	return []record{
		{cmd: writeLutRegister, data: table[:153], idle: 1},
		{cmd: endOptionEOPT, data: []byte{table[153]}},
		{cmd: gateDrivingVoltageControl, data: []byte{table[154]}},
		{cmd: sourceDrivingVoltageControl, data: table[155:158]},
		{cmd: writeVcomRegister, data: []byte{table[158]}},
	}
}

func TestInitDisplay(t *testing.T) {
	for _, tc := range []struct {
		name      string
		entryMode byte
	}{
		{name: "portrait", entryMode: entryModePortrait},
		{name: "landscape", entryMode: entryModeLandscape},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got fakeController

			initDisplay(&got, 128, 250, tc.entryMode, BytesFor(Partial))

			want := []record{
				{cmd: swReset, idle: 1},
				{cmd: driverOutputControl, data: []byte{250 - 1, 0, 0}},
				{cmd: dataEntryModeSetting, data: []byte{tc.entryMode}},
				{cmd: setRAMXAddressStartEndPosition, data: []byte{0x00, 0x0f}},
				{cmd: setRAMYAddressStartEndPosition, data: []byte{0x00, 0x00, 0xf9, 0x00}},
				{cmd: setRAMXAddressCounter, data: []byte{0x00}},
				{cmd: setRAMYAddressCounter, data: []byte{0x00, 0x00}},
				{cmd: borderWaveformControl, data: []byte{0x05}},
				{cmd: displayUpdateControl1, data: []byte{0x00, 0x80}},
				{cmd: tempSensorSelect, data: []byte{0x80}, idle: 1},
			}
			want = append(want, lutRecords(BytesFor(Partial))...)

			if diff := cmp.Diff([]record(got), want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
				t.Errorf("initDisplay() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestSetWindow(t *testing.T) {
	for _, tc := range []struct {
		name                       string
		xStart, yStart, xEnd, yEnd int
		want                       []record
	}{
		{
			name: "whole panel",
			xEnd: 127,
			yEnd: 249,
			want: []record{
				{cmd: setRAMXAddressStartEndPosition, data: []byte{0x00, 0x0f}},
				{cmd: setRAMYAddressStartEndPosition, data: []byte{0x00, 0x00, 0xf9, 0x00}},
			},
		},
		{
			name:   "offset",
			xStart: 16,
			yStart: 260,
			xEnd:   63,
			yEnd:   300,
			want: []record{
				{cmd: setRAMXAddressStartEndPosition, data: []byte{0x02, 0x07}},
				{cmd: setRAMYAddressStartEndPosition, data: []byte{0x04, 0x01, 0x2c, 0x01}},
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got fakeController

			setWindow(&got, tc.xStart, tc.yStart, tc.xEnd, tc.yEnd)

			if diff := cmp.Diff([]record(got), tc.want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
				t.Errorf("setWindow() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestSetCursor(t *testing.T) {
	var got fakeController

	setCursor(&got, 8, 300)

	want := []record{
		{cmd: setRAMXAddressCounter, data: []byte{0x08}},
		{cmd: setRAMYAddressCounter, data: []byte{0x2c, 0x01}},
	}
	if diff := cmp.Diff([]record(got), want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
		t.Errorf("setCursor() difference (-got +want):\n%s", diff)
	}
}

func TestSetLut(t *testing.T) {
	for _, kind := range []Kind{Full, Partial} {
		t.Run(kind.String(), func(t *testing.T) {
			var got fakeController

			setLut(&got, BytesFor(kind))

			if diff := cmp.Diff([]record(got), lutRecords(BytesFor(kind)), cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
				t.Errorf("setLut() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestTurnOnDisplay(t *testing.T) {
	for _, tc := range []struct {
		name string
		mode byte
	}{
		{name: "full", mode: updateFull},
		{name: "partial", mode: updatePartial},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var got fakeController

			turnOnDisplay(&got, tc.mode)

			want := []record{
				{cmd: displayUpdateControl2, data: []byte{tc.mode}},
				{cmd: masterActivation, idle: 1},
			}
			if diff := cmp.Diff([]record(got), want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
				t.Errorf("turnOnDisplay() difference (-got +want):\n%s", diff)
			}
		})
	}
}

func TestWriteImage(t *testing.T) {
	var got fakeController

	image := bytes.Repeat([]byte{0xAA}, 4000)
	writeImage(&got, writeRAMRed, image)

	want := []record{{cmd: writeRAMRed, data: image}}
	if diff := cmp.Diff([]record(got), want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
		t.Errorf("writeImage() difference (-got +want):\n%s", diff)
	}
}

func TestPreparePartial(t *testing.T) {
	var got fakeController

	preparePartial(&got, BytesFor(Full))

	want := lutRecords(BytesFor(Full))
	want = append(want,
		record{cmd: writeRegisterForDisplayOption, data: []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00}},
		record{cmd: borderWaveformControl, data: []byte{0x80}},
		record{cmd: displayUpdateControl2, data: []byte{0xc0}},
		record{cmd: masterActivation, idle: 1},
	)
	if diff := cmp.Diff([]record(got), want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
		t.Errorf("preparePartial() difference (-got +want):\n%s", diff)
	}
}

func TestEnterDeepSleep(t *testing.T) {
	var got fakeController

	enterDeepSleep(&got)

	want := []record{{cmd: deepSleepMode, data: []byte{0x01}}}
	if diff := cmp.Diff([]record(got), want, cmpopts.EquateEmpty(), cmp.AllowUnexported(record{})); diff != "" {
		t.Errorf("enterDeepSleep() difference (-got +want):\n%s", diff)
	}
}
