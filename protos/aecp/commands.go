// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aecp

import (
	"fmt"
	"strconv"
	"strings"
)

// CommandType AEM 命令码
type CommandType uint16

// AEM 命令码
const (
	CmdAcquireEntity                     CommandType = 0x0000
	CmdLockEntity                        CommandType = 0x0001
	CmdEntityAvailable                   CommandType = 0x0002
	CmdControllerAvailable               CommandType = 0x0003
	CmdReadDescriptor                    CommandType = 0x0004
	CmdWriteDescriptor                   CommandType = 0x0005
	CmdSetConfiguration                  CommandType = 0x0006
	CmdGetConfiguration                  CommandType = 0x0007
	CmdSetStreamFormat                   CommandType = 0x0008
	CmdGetStreamFormat                   CommandType = 0x0009
	CmdSetVideoFormat                    CommandType = 0x000a
	CmdGetVideoFormat                    CommandType = 0x000b
	CmdSetSensorFormat                   CommandType = 0x000c
	CmdGetSensorFormat                   CommandType = 0x000d
	CmdSetStreamInfo                     CommandType = 0x000e
	CmdGetStreamInfo                     CommandType = 0x000f
	CmdSetName                           CommandType = 0x0010
	CmdGetName                           CommandType = 0x0011
	CmdSetAssociationID                  CommandType = 0x0012
	CmdGetAssociationID                  CommandType = 0x0013
	CmdSetSamplingRate                   CommandType = 0x0014
	CmdGetSamplingRate                   CommandType = 0x0015
	CmdSetClockSource                    CommandType = 0x0016
	CmdGetClockSource                    CommandType = 0x0017
	CmdSetControl                        CommandType = 0x0018
	CmdGetControl                        CommandType = 0x0019
	CmdIncrementControl                  CommandType = 0x001a
	CmdDecrementControl                  CommandType = 0x001b
	CmdSetSignalSelector                 CommandType = 0x001c
	CmdGetSignalSelector                 CommandType = 0x001d
	CmdSetMixer                          CommandType = 0x001e
	CmdGetMixer                          CommandType = 0x001f
	CmdSetMatrix                         CommandType = 0x0020
	CmdGetMatrix                         CommandType = 0x0021
	CmdStartStreaming                    CommandType = 0x0022
	CmdStopStreaming                     CommandType = 0x0023
	CmdRegisterUnsolicitedNotification   CommandType = 0x0024
	CmdDeregisterUnsolicitedNotification CommandType = 0x0025
	CmdIdentifyNotification              CommandType = 0x0026
	CmdGetAvbInfo                        CommandType = 0x0027
	CmdGetAsPath                         CommandType = 0x0028
	CmdGetCounters                       CommandType = 0x0029
	CmdReboot                            CommandType = 0x002a
	CmdGetAudioMap                       CommandType = 0x002b
	CmdAddAudioMappings                  CommandType = 0x002c
	CmdRemoveAudioMappings               CommandType = 0x002d
	CmdGetVideoMap                       CommandType = 0x002e
	CmdAddVideoMappings                  CommandType = 0x002f
	CmdRemoveVideoMappings               CommandType = 0x0030
	CmdGetSensorMap                      CommandType = 0x0031
	CmdAddSensorMappings                 CommandType = 0x0032
	CmdRemoveSensorMappings              CommandType = 0x0033
	CmdStartOperation                    CommandType = 0x0034
	CmdAbortOperation                    CommandType = 0x0035
	CmdOperationStatus                   CommandType = 0x0036
	CmdAuthAddKey                        CommandType = 0x0037
	CmdAuthDeleteKey                     CommandType = 0x0038
	CmdAuthGetKeyList                    CommandType = 0x0039
	CmdAuthGetKey                        CommandType = 0x003a
	CmdAuthAddKeyToChain                 CommandType = 0x003b
	CmdAuthDeleteKeyFromChain            CommandType = 0x003c
	CmdAuthGetKeychainList               CommandType = 0x003d
	CmdAuthGetIdentity                   CommandType = 0x003e
	CmdAuthAddToken                      CommandType = 0x003f
	CmdAuthDeleteToken                   CommandType = 0x0040
	CmdAuthenticate                      CommandType = 0x0041
	CmdDeauthenticate                    CommandType = 0x0042
	CmdEnableTransportSecurity           CommandType = 0x0043
	CmdDisableTransportSecurity          CommandType = 0x0044
	CmdEnableStreamEncryption            CommandType = 0x0045
	CmdDisableStreamEncryption           CommandType = 0x0046
	CmdSetMemoryObjectLength             CommandType = 0x0047
	CmdGetMemoryObjectLength             CommandType = 0x0048
	CmdSetStreamBackup                   CommandType = 0x0049
	CmdGetStreamBackup                   CommandType = 0x004a
	CmdExpansion                         CommandType = 0x7fff
)

var commandNames = [...]string{
	"ACQUIRE_ENTITY", "LOCK_ENTITY", "ENTITY_AVAILABLE", "CONTROLLER_AVAILABLE",
	"READ_DESCRIPTOR", "WRITE_DESCRIPTOR", "SET_CONFIGURATION", "GET_CONFIGURATION",
	"SET_STREAM_FORMAT", "GET_STREAM_FORMAT", "SET_VIDEO_FORMAT", "GET_VIDEO_FORMAT",
	"SET_SENSOR_FORMAT", "GET_SENSOR_FORMAT", "SET_STREAM_INFO", "GET_STREAM_INFO",
	"SET_NAME", "GET_NAME", "SET_ASSOCIATION_ID", "GET_ASSOCIATION_ID",
	"SET_SAMPLING_RATE", "GET_SAMPLING_RATE", "SET_CLOCK_SOURCE", "GET_CLOCK_SOURCE",
	"SET_CONTROL", "GET_CONTROL", "INCREMENT_CONTROL", "DECREMENT_CONTROL",
	"SET_SIGNAL_SELECTOR", "GET_SIGNAL_SELECTOR", "SET_MIXER", "GET_MIXER",
	"SET_MATRIX", "GET_MATRIX", "START_STREAMING", "STOP_STREAMING",
	"REGISTER_UNSOLICITED_NOTIFICATION", "DEREGISTER_UNSOLICITED_NOTIFICATION",
	"IDENTIFY_NOTIFICATION", "GET_AVB_INFO", "GET_AS_PATH", "GET_COUNTERS", "REBOOT",
	"GET_AUDIO_MAP", "ADD_AUDIO_MAPPINGS", "REMOVE_AUDIO_MAPPINGS",
	"GET_VIDEO_MAP", "ADD_VIDEO_MAPPINGS", "REMOVE_VIDEO_MAPPINGS",
	"GET_SENSOR_MAP", "ADD_SENSOR_MAPPINGS", "REMOVE_SENSOR_MAPPINGS",
	"START_OPERATION", "ABORT_OPERATION", "OPERATION_STATUS",
	"AUTH_ADD_KEY", "AUTH_DELETE_KEY", "AUTH_GET_KEY_LIST", "AUTH_GET_KEY",
	"AUTH_ADD_KEY_TO_CHAIN", "AUTH_DELETE_KEY_FROM_CHAIN", "AUTH_GET_KEYCHAIN_LIST",
	"AUTH_GET_IDENTITY", "AUTH_ADD_TOKEN", "AUTH_DELETE_TOKEN", "AUTHENTICATE",
	"DEAUTHENTICATE", "ENABLE_TRANSPORT_SECURITY", "DISABLE_TRANSPORT_SECURITY",
	"ENABLE_STREAM_ENCRYPTION", "DISABLE_STREAM_ENCRYPTION",
	"SET_MEMORY_OBJECT_LENGTH", "GET_MEMORY_OBJECT_LENGTH",
	"SET_STREAM_BACKUP", "GET_STREAM_BACKUP",
}

func (c CommandType) String() string {
	if int(c) < len(commandNames) {
		return commandNames[c]
	}
	if c == CmdExpansion {
		return "EXPANSION"
	}
	return fmt.Sprintf("COMMAND_0x%04x", uint16(c))
}

// Known 是否为已定义的命令码
func (c CommandType) Known() bool {
	return int(c) < len(commandNames) || c == CmdExpansion
}

// MarshalText implements encoding.TextMarshaler
func (c CommandType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *CommandType) UnmarshalText(text []byte) error {
	s := strings.ToUpper(string(text))
	for i, name := range commandNames {
		if name == s {
			*c = CommandType(i)
			return nil
		}
	}
	if s == "EXPANSION" {
		*c = CmdExpansion
		return nil
	}
	v, err := strconv.ParseUint(s, 0, 15)
	if err != nil {
		return fmt.Errorf("aecp: unknown command type %q", text)
	}
	*c = CommandType(v)
	return nil
}

// isGet GET 类命令的请求只携带描述符地址
func (c CommandType) isGet() bool {
	switch c {
	case CmdGetConfiguration, CmdGetStreamFormat, CmdGetStreamInfo, CmdGetName,
		CmdGetSamplingRate, CmdGetClockSource, CmdGetControl, CmdGetCounters:
		return true
	}
	return false
}
