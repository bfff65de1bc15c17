// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn53x

import "fmt"

// PN53x command codes
const (
	cmdDiagnose              = 0x00
	cmdGetFirmwareVersion    = 0x02
	cmdGetGeneralStatus      = 0x04
	cmdReadRegister          = 0x06
	cmdWriteRegister         = 0x08
	cmdSetParameters         = 0x12
	cmdSAMConfiguration      = 0x14
	cmdPowerDown             = 0x16
	cmdRFConfiguration       = 0x32
	cmdInDataExchange        = 0x40
	cmdInCommunicateThru     = 0x42
	cmdInDeselect            = 0x44
	cmdInJumpForPSL          = 0x46
	cmdInListPassiveTarget   = 0x4A
	cmdInPSL                 = 0x4E
	cmdInATR                 = 0x50
	cmdInRelease             = 0x52
	cmdInSelect              = 0x54
	cmdInJumpForDEP          = 0x56
	cmdInAutoPoll            = 0x60
	cmdTgGetData             = 0x86
	cmdTgGetInitiatorCommand = 0x88
	cmdTgInitAsTarget        = 0x8C
	cmdTgSetData             = 0x8E
	cmdTgResponseToInitiator = 0x90
	cmdTgSetGeneralBytes     = 0x92
	cmdTgSetMetaData         = 0x94
)

var commandNames = map[byte]string{
	cmdDiagnose:              "Diagnose",
	cmdGetFirmwareVersion:    "GetFirmwareVersion",
	cmdGetGeneralStatus:      "GetGeneralStatus",
	cmdReadRegister:          "ReadRegister",
	cmdWriteRegister:         "WriteRegister",
	cmdSetParameters:         "SetParameters",
	cmdSAMConfiguration:      "SAMConfiguration",
	cmdPowerDown:             "PowerDown",
	cmdRFConfiguration:       "RFConfiguration",
	cmdInDataExchange:        "InDataExchange",
	cmdInCommunicateThru:     "InCommunicateThru",
	cmdInDeselect:            "InDeselect",
	cmdInJumpForPSL:          "InJumpForPSL",
	cmdInListPassiveTarget:   "InListPassiveTarget",
	cmdInPSL:                 "InPSL",
	cmdInATR:                 "InATR",
	cmdInRelease:             "InRelease",
	cmdInSelect:              "InSelect",
	cmdInJumpForDEP:          "InJumpForDEP",
	cmdInAutoPoll:            "InAutoPoll",
	cmdTgGetData:             "TgGetData",
	cmdTgGetInitiatorCommand: "TgGetInitiatorCommand",
	cmdTgInitAsTarget:        "TgInitAsTarget",
	cmdTgSetData:             "TgSetData",
	cmdTgResponseToInitiator: "TgResponseToInitiator",
	cmdTgSetGeneralBytes:     "TgSetGeneralBytes",
	cmdTgSetMetaData:         "TgSetMetaData",
}

func commandName(cmd byte) string {
	if name, ok := commandNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("command 0x%02X", cmd)
}

// hasStatusByte reports whether the first response byte of cmd is a status
// byte whose low 6 bits are an error code.
func hasStatusByte(cmd byte) bool {
	switch cmd {
	case cmdPowerDown,
		cmdInDataExchange,
		cmdInCommunicateThru,
		cmdInDeselect,
		cmdInJumpForPSL,
		cmdInPSL,
		cmdInATR,
		cmdInRelease,
		cmdInSelect,
		cmdInJumpForDEP,
		cmdTgGetData,
		cmdTgGetInitiatorCommand,
		cmdTgSetData,
		cmdTgResponseToInitiator,
		cmdTgSetGeneralBytes,
		cmdTgSetMetaData:
		return true
	default:
		return false
	}
}

// waitsForRF reports whether cmd blocks until something happens on the RF
// side. Those commands are bounded by the caller's context only.
func waitsForRF(cmd byte) bool {
	switch cmd {
	case cmdInListPassiveTarget,
		cmdInJumpForDEP,
		cmdInAutoPoll,
		cmdTgInitAsTarget,
		cmdTgGetData,
		cmdTgGetInitiatorCommand:
		return true
	default:
		return false
	}
}

// preservesRegisters reports whether cmd leaves the CIU registers as the
// register cache last saw them. Selection and target commands let the chip
// firmware reprogram the CIU for the negotiated protocol.
func preservesRegisters(cmd byte) bool {
	switch cmd {
	case cmdGetFirmwareVersion,
		cmdGetGeneralStatus,
		cmdReadRegister,
		cmdWriteRegister,
		cmdSetParameters,
		cmdRFConfiguration,
		cmdInDataExchange,
		cmdInCommunicateThru,
		cmdTgGetData,
		cmdTgSetData,
		cmdTgGetInitiatorCommand,
		cmdTgResponseToInitiator:
		return true
	default:
		return false
	}
}

// RF configuration items (RFConfiguration CfgItem)
const (
	rfciField       = 0x01
	rfciTiming      = 0x02
	rfciRetryData   = 0x04
	rfciRetrySelect = 0x05
)

// SAMMode represents the PN532 SAM configuration mode
type SAMMode byte

const (
	// SAMModeNormal - normal mode (default)
	SAMModeNormal SAMMode = 0x01
	// SAMModeVirtualCard - Virtual Card mode
	SAMModeVirtualCard SAMMode = 0x02
	// SAMModeWiredCard - Wired Card mode
	SAMModeWiredCard SAMMode = 0x03
	// SAMModeDualCard - Dual Card mode
	SAMModeDualCard SAMMode = 0x04
)

// DiagnoseTest selects the self test run by Diagnose.
type DiagnoseTest byte

// Diagnose test numbers
const (
	DiagnoseCommunicationTest DiagnoseTest = 0x00
	DiagnoseROMTest           DiagnoseTest = 0x01
	DiagnoseRAMTest           DiagnoseTest = 0x02
	DiagnosePollingTest       DiagnoseTest = 0x04
	DiagnoseEchoBackTest      DiagnoseTest = 0x05
	DiagnoseAttentionTest     DiagnoseTest = 0x06
	DiagnoseSelfAntennaTest   DiagnoseTest = 0x07
)
