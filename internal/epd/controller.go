package epd

// Commands
const (
	driverOutputControl            byte = 0x01
	gateDrivingVoltageControl      byte = 0x03
	sourceDrivingVoltageControl    byte = 0x04
	deepSleepMode                  byte = 0x10
	dataEntryModeSetting           byte = 0x11
	swReset                        byte = 0x12
	tempSensorSelect               byte = 0x18
	masterActivation               byte = 0x20
	displayUpdateControl1          byte = 0x21
	displayUpdateControl2          byte = 0x22
	writeRAMBW                     byte = 0x24
	writeRAMRed                    byte = 0x26
	writeVcomRegister              byte = 0x2C
	writeLutRegister               byte = 0x32
	writeRegisterForDisplayOption  byte = 0x37
	borderWaveformControl          byte = 0x3C
	endOptionEOPT                  byte = 0x3F
	setRAMXAddressStartEndPosition byte = 0x44
	setRAMYAddressStartEndPosition byte = 0x45
	setRAMXAddressCounter          byte = 0x4E
	setRAMYAddressCounter          byte = 0x4F
)

// Values for displayUpdateControl2.
const (
	updateFull       byte = 0xC7
	updatePartial    byte = 0x0F
	updateClockPower byte = 0xC0
)

// Data entry modes: X and Y increment, counter advancing along X (portrait)
// or along Y (landscape).
const (
	entryModePortrait  byte = 0x03
	entryModeLandscape byte = 0x07
)

type controller interface {
	sendCommand(byte)
	sendData([]byte)
	waitUntilIdle()
}

func initDisplay(ctrl controller, width, height int, entryMode byte, table WaveformTable) {
	ctrl.waitUntilIdle()
	ctrl.sendCommand(swReset)
	ctrl.waitUntilIdle()

	ctrl.sendCommand(driverOutputControl)
	ctrl.sendData([]byte{byte((height - 1) & 0xFF), byte((height - 1) >> 8 & 0xFF), 0x00})

	ctrl.sendCommand(dataEntryModeSetting)
	ctrl.sendData([]byte{entryMode})

	setWindow(ctrl, 0, 0, width-1, height-1)
	setCursor(ctrl, 0, 0)

	ctrl.sendCommand(borderWaveformControl)
	ctrl.sendData([]byte{0x05})

	ctrl.sendCommand(displayUpdateControl1)
	ctrl.sendData([]byte{0x00, 0x80})

	ctrl.sendCommand(tempSensorSelect)
	ctrl.sendData([]byte{0x80})

	ctrl.waitUntilIdle()

	setLut(ctrl, table)
}

func lookUpTable(ctrl controller, table WaveformTable) {
	ctrl.sendCommand(writeLutRegister)
	ctrl.sendData(table.LUT())
	ctrl.waitUntilIdle()
}

func setLut(ctrl controller, table WaveformTable) {
	lookUpTable(ctrl, table)
	ctrl.sendCommand(endOptionEOPT)
	ctrl.sendData([]byte{table.EndOption()})
	ctrl.sendCommand(gateDrivingVoltageControl)
	ctrl.sendData([]byte{table.GateVoltage()})
	ctrl.sendCommand(sourceDrivingVoltageControl)
	ctrl.sendData(table.SourceVoltages())
	ctrl.sendCommand(writeVcomRegister)
	ctrl.sendData([]byte{table.VCOM()})
}

// setWindow programs the RAM window; X is given in pixels and sent in bytes.
func setWindow(ctrl controller, xStart, yStart, xEnd, yEnd int) {
	ctrl.sendCommand(setRAMXAddressStartEndPosition)
	ctrl.sendData([]byte{byte((xStart >> 3) & 0xFF), byte((xEnd >> 3) & 0xFF)})

	ctrl.sendCommand(setRAMYAddressStartEndPosition)
	ctrl.sendData([]byte{
		byte(yStart & 0xFF), byte((yStart >> 8) & 0xFF),
		byte(yEnd & 0xFF), byte((yEnd >> 8) & 0xFF),
	})
}

func setCursor(ctrl controller, x, y int) {
	ctrl.sendCommand(setRAMXAddressCounter)
	// x must be a multiple of 8, the controller ignores the low 3 bits.
	ctrl.sendData([]byte{byte(x & 0xFF)})

	ctrl.sendCommand(setRAMYAddressCounter)
	ctrl.sendData([]byte{byte(y & 0xFF), byte((y >> 8) & 0xFF)})
}

// turnOnDisplay activates the update sequence selected by mode and waits
// for it to finish.
func turnOnDisplay(ctrl controller, mode byte) {
	ctrl.sendCommand(displayUpdateControl2)
	ctrl.sendData([]byte{mode})
	ctrl.sendCommand(masterActivation)
	ctrl.waitUntilIdle()
}

func writeImage(ctrl controller, cmd byte, image []byte) {
	ctrl.sendCommand(cmd)
	ctrl.sendData(image)
}

// preparePartial loads the fast waveform and switches the controller into
// partial-update operation. The caller has already pulsed reset.
func preparePartial(ctrl controller, table WaveformTable) {
	setLut(ctrl, table)

	ctrl.sendCommand(writeRegisterForDisplayOption)
	ctrl.sendData([]byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x40, 0x00, 0x00, 0x00, 0x00, 0x00})

	ctrl.sendCommand(borderWaveformControl)
	ctrl.sendData([]byte{0x80})

	ctrl.sendCommand(displayUpdateControl2)
	ctrl.sendData([]byte{updateClockPower})
	ctrl.sendCommand(masterActivation)
	ctrl.waitUntilIdle()
}

func enterDeepSleep(ctrl controller) {
	ctrl.sendCommand(deepSleepMode)
	ctrl.sendData([]byte{0x01})
}
