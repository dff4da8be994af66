package wire

import "fmt"

// UpdateStage is the phase of the update handshake an error belongs to.
type UpdateStage uint8

const (
	StageUnknown UpdateStage = iota
	StageStart
	StageData
	StageEnd
)

func (s UpdateStage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageData:
		return "data"
	case StageEnd:
		return "end"
	default:
		return "unknown"
	}
}

// UpdateError is the error id reported in the update status (0x2441)
// when the state is UpdateStateError.
//
// The numbering of the start errors runs into the data range: 51 and 52
// name a start error when reported before the first data frame and a
// data error afterwards. Use NameInStage when the stage is known.
type UpdateError uint8

const (
	UpdateErrUnknownReason UpdateError = 0

	// Start stage, 1..52. 51 and 52 share their value with the first data errors.
	UpdateErrStartPrimaryEraseNoResp                               UpdateError = 1
	UpdateErrStartPrimaryEraseUnexpectedRespAddrError              UpdateError = 2
	UpdateErrStartPrimaryBootloaderNoResp                          UpdateError = 3
	UpdateErrStartPrimaryBootloaderUnexpectedRespAddrError         UpdateError = 4
	UpdateErrStartCANNotMatchPMNumber                              UpdateError = 5
	UpdateErrStartCANEraseNoResp                                   UpdateError = 6
	UpdateErrStartCANEraseUnexpectedRespAddrError                  UpdateError = 7
	UpdateErrStartCANBootloaderNoResp                              UpdateError = 8
	UpdateErrStartCANBootloaderUnexpectedRespAddrError             UpdateError = 9
	UpdateErrStartSecondaryNotMatchPMNumber                        UpdateError = 10
	UpdateErrStartSecondaryEraseNoResp                             UpdateError = 11
	UpdateErrStartSecondaryEraseUnexpectedRespAddrError            UpdateError = 12
	UpdateErrStartSecondaryBootloaderNoResp                        UpdateError = 13
	UpdateErrStartSecondaryBootloaderUnexpectedRespAddrError       UpdateError = 14
	UpdateErrStartCANReadVerUnexpectedRespAddrError                UpdateError = 15
	UpdateErrStartPrimaryReadVerUnexpectedRespAddrError            UpdateError = 16
	UpdateErrStartSecondaryReadVerUnexpectedRespAddrError          UpdateError = 17
	UpdateErrStartCANEraseUnexpectedRespGroupIDError               UpdateError = 18
	UpdateErrStartCANBootloaderUnexpectedRespGroupIDError          UpdateError = 19
	UpdateErrStartPrimaryEraseUnexpectedRespGroupIDError           UpdateError = 20
	UpdateErrStartPrimaryNotMatchPMNumber                          UpdateError = 21
	UpdateErrStartPrimaryEraseUnknownError                         UpdateError = 22
	UpdateErrStartPrimaryBootloaderUnexpectedRespGroupIDError      UpdateError = 23
	UpdateErrStartPrimaryBootloaderUnknownError                    UpdateError = 24
	UpdateErrStartSecondaryEraseUnexpectedRespGroupIDError         UpdateError = 25
	UpdateErrStartSecondaryEraseUnknownError                       UpdateError = 26
	UpdateErrStartSecondaryBootloaderUnexpectedRespGroupIDError    UpdateError = 27
	UpdateErrStartSecondaryBootloaderUnknownError                  UpdateError = 28
	UpdateErrStartCANReadVerUnexpectedRespGroupIDError             UpdateError = 29
	UpdateErrStartPrimaryReadVerUnexpectedRespGroupIDError         UpdateError = 30
	UpdateErrStartSecondaryReadVerUnexpectedRespGroupIDError       UpdateError = 31
	UpdateErrStartCANReadVerSameAddrError                          UpdateError = 32
	UpdateErrStartCANReadVerUnknownError                           UpdateError = 33
	UpdateErrStartPrimaryReadVerSameAddrError                      UpdateError = 34
	UpdateErrStartPrimaryReadVerUnknownError                       UpdateError = 35
	UpdateErrStartSecondaryReadVerSameAddrError                    UpdateError = 36
	UpdateErrStartSecondaryReadVerUnknownError                     UpdateError = 37
	UpdateErrStartCANChkSoftStateNoResp                            UpdateError = 38
	UpdateErrStartCANChkSoftStateUnexpectedRespAddrError           UpdateError = 39
	UpdateErrStartCANChkSoftStateUnexpectedRespGroupIDError        UpdateError = 40
	UpdateErrStartCANChkSoftStateUnexpectedRespSameAddrError       UpdateError = 41
	UpdateErrStartCANChkSoftStateUnknownError                      UpdateError = 42
	UpdateErrStartPrimaryChkSoftStateNoResp                        UpdateError = 43
	UpdateErrStartPrimaryChkSoftStateUnexpectedRespAddrError       UpdateError = 44
	UpdateErrStartPrimaryChkSoftStateUnexpectedRespGroupIDError    UpdateError = 45
	UpdateErrStartPrimaryChkSoftStateUnexpectedRespSameAddrError   UpdateError = 46
	UpdateErrStartPrimaryChkSoftStateUnknownError                  UpdateError = 47
	UpdateErrStartSecondaryChkSoftStateNoResp                      UpdateError = 48
	UpdateErrStartSecondaryChkSoftStateUnexpectedRespAddrError     UpdateError = 49
	UpdateErrStartSecondaryChkSoftStateUnexpectedRespGroupIDError  UpdateError = 50
	UpdateErrStartSecondaryChkSoftStateUnexpectedRespSameAddrError UpdateError = 51
	UpdateErrStartSecondaryChkSoftStateUnknownError                UpdateError = 52

	// Data stage
	UpdateErrDataPrimaryWriteNoResp             UpdateError = 51
	UpdateErrDataPrimaryWriteFailure            UpdateError = 52
	UpdateErrDataPrimaryWriteUnknownError       UpdateError = 53
	UpdateErrDataSecondaryWriteNoResp           UpdateError = 54
	UpdateErrDataSecondaryWriteFailure          UpdateError = 55
	UpdateErrDataSecondaryWriteUnknownError     UpdateError = 56
	UpdateErrDataCANWriteNoResp                 UpdateError = 57
	UpdateErrDataCANWriteFailure                UpdateError = 58
	UpdateErrDataPrimaryInvalidSequenceNumber   UpdateError = 59
	UpdateErrDataSecondaryInvalidSequenceNumber UpdateError = 60
	UpdateErrDataCANInvalidSequenceNumber       UpdateError = 61
	UpdateErrDataInvalidSequenceNumber          UpdateError = 62

	// End stage
	UpdateErrEndPrimaryUpdateNoResp          UpdateError = 71
	UpdateErrEndPrimaryUpdateFailure         UpdateError = 72
	UpdateErrEndPrimaryUpdateUnknownError    UpdateError = 73
	UpdateErrEndPrimaryVersionNoResp         UpdateError = 74
	UpdateErrEndPrimaryWrongVersion          UpdateError = 75
	UpdateErrEndPrimaryAddrIsOutOfRange      UpdateError = 76
	UpdateErrEndPrimaryGroupIDIsOutOfRange   UpdateError = 77
	UpdateErrEndPrimaryAddrIsSame            UpdateError = 78
	UpdateErrEndPrimaryUnknownError          UpdateError = 79
	UpdateErrEndSecondaryUpdateNoResp        UpdateError = 80
	UpdateErrEndSecondaryUpdateFailure       UpdateError = 81
	UpdateErrEndSecondaryUpdateUnknownError  UpdateError = 82
	UpdateErrEndSecondaryVersionNoResp       UpdateError = 83
	UpdateErrEndSecondaryWrongVersion        UpdateError = 84
	UpdateErrEndSecondaryUnknownError        UpdateError = 85
	UpdateErrEndSecondaryAddrIsOutOfRange    UpdateError = 86
	UpdateErrEndSecondaryGroupIDIsOutOfRange UpdateError = 87
	UpdateErrEndSecondaryAddrIsSame          UpdateError = 88
	UpdateErrEndCANUpdateNoResp              UpdateError = 89
	UpdateErrEndCANUpdateFailure             UpdateError = 90
	UpdateErrEndCANVersionNoResp             UpdateError = 91
	UpdateErrEndCANWrongVersion              UpdateError = 92
	UpdateErrEndCANUnknownError              UpdateError = 93
	UpdateErrEndCANAddrIsOutOfRange          UpdateError = 94
	UpdateErrEndCANGroupIDIsOutOfRange       UpdateError = 95
	UpdateErrEndCANAddrIsSame                UpdateError = 96
	UpdateErrEndNotGetSerialNumber           UpdateError = 97
	UpdateErrEndUnknownError                 UpdateError = 98
)

var startErrorNames = map[UpdateError]string{
	UpdateErrStartPrimaryEraseNoResp:                               "START_PRIMARY_ERASE_NO_RESP",
	UpdateErrStartPrimaryEraseUnexpectedRespAddrError:              "START_PRIMARY_ERASE_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartPrimaryBootloaderNoResp:                          "START_PRIMARY_BOOTLOADER_NO_RESP",
	UpdateErrStartPrimaryBootloaderUnexpectedRespAddrError:         "START_PRIMARY_BOOTLOADER_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartCANNotMatchPMNumber:                              "START_CAN_NOT_MATCH_PM_NUMBER",
	UpdateErrStartCANEraseNoResp:                                   "START_CAN_ERASE_NO_RESP",
	UpdateErrStartCANEraseUnexpectedRespAddrError:                  "START_CAN_ERASE_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartCANBootloaderNoResp:                              "START_CAN_BOOTLOADER_NO_RESP",
	UpdateErrStartCANBootloaderUnexpectedRespAddrError:             "START_CAN_BOOTLOADER_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartSecondaryNotMatchPMNumber:                        "START_SECONDARY_NOT_MATCH_PM_NUMBER",
	UpdateErrStartSecondaryEraseNoResp:                             "START_SECONDARY_ERASE_NO_RESP",
	UpdateErrStartSecondaryEraseUnexpectedRespAddrError:            "START_SECONDARY_ERASE_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartSecondaryBootloaderNoResp:                        "START_SECONDARY_BOOTLOADER_NO_RESP",
	UpdateErrStartSecondaryBootloaderUnexpectedRespAddrError:       "START_SECONDARY_BOOTLOADER_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartCANReadVerUnexpectedRespAddrError:                "START_CAN_READ_VER_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartPrimaryReadVerUnexpectedRespAddrError:            "START_PRIMARY_READ_VER_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartSecondaryReadVerUnexpectedRespAddrError:          "START_SECONDARY_READ_VER_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartCANEraseUnexpectedRespGroupIDError:               "START_CAN_ERASE_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartCANBootloaderUnexpectedRespGroupIDError:          "START_CAN_BOOTLOADER_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartPrimaryEraseUnexpectedRespGroupIDError:           "START_PRIMARY_ERASE_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartPrimaryNotMatchPMNumber:                          "START_PRIMARY_NOT_MATCH_PM_NUMBER",
	UpdateErrStartPrimaryEraseUnknownError:                         "START_PRIMARY_ERASE_UNKNOWN_ERROR",
	UpdateErrStartPrimaryBootloaderUnexpectedRespGroupIDError:      "START_PRIMARY_BOOTLOADER_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartPrimaryBootloaderUnknownError:                    "START_PRIMARY_BOOTLOADER_UNKNOWN_ERROR",
	UpdateErrStartSecondaryEraseUnexpectedRespGroupIDError:         "START_SECONDARY_ERASE_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartSecondaryEraseUnknownError:                       "START_SECONDARY_ERASE_UNKNOWN_ERROR",
	UpdateErrStartSecondaryBootloaderUnexpectedRespGroupIDError:    "START_SECONDARY_BOOTLOADER_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartSecondaryBootloaderUnknownError:                  "START_SECONDARY_BOOTLOADER_UNKNOWN_ERROR",
	UpdateErrStartCANReadVerUnexpectedRespGroupIDError:             "START_CAN_READ_VER_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartPrimaryReadVerUnexpectedRespGroupIDError:         "START_PRIMARY_READ_VER_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartSecondaryReadVerUnexpectedRespGroupIDError:       "START_SECONDARY_READ_VER_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartCANReadVerSameAddrError:                          "START_CAN_READ_VER_SAME_ADDR_ERROR",
	UpdateErrStartCANReadVerUnknownError:                           "START_CAN_READ_VER_UNKNOWN_ERROR",
	UpdateErrStartPrimaryReadVerSameAddrError:                      "START_PRIMARY_READ_VER_SAME_ADDR_ERROR",
	UpdateErrStartPrimaryReadVerUnknownError:                       "START_PRIMARY_READ_VER_UNKNOWN_ERROR",
	UpdateErrStartSecondaryReadVerSameAddrError:                    "START_SECONDARY_READ_VER_SAME_ADDR_ERROR",
	UpdateErrStartSecondaryReadVerUnknownError:                     "START_SECONDARY_READ_VER_UNKNOWN_ERROR",
	UpdateErrStartCANChkSoftStateNoResp:                            "START_CAN_CHK_SOFT_STATE_NO_RESP",
	UpdateErrStartCANChkSoftStateUnexpectedRespAddrError:           "START_CAN_CHK_SOFT_STATE_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartCANChkSoftStateUnexpectedRespGroupIDError:        "START_CAN_CHK_SOFT_STATE_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartCANChkSoftStateUnexpectedRespSameAddrError:       "START_CAN_CHK_SOFT_STATE_UNEXPECTED_RESP_SAME_ADDR_ERROR",
	UpdateErrStartCANChkSoftStateUnknownError:                      "START_CAN_CHK_SOFT_STATE_UNKNOWN_ERROR",
	UpdateErrStartPrimaryChkSoftStateNoResp:                        "START_PRIMARY_CHK_SOFT_STATE_NO_RESP",
	UpdateErrStartPrimaryChkSoftStateUnexpectedRespAddrError:       "START_PRIMARY_CHK_SOFT_STATE_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartPrimaryChkSoftStateUnexpectedRespGroupIDError:    "START_PRIMARY_CHK_SOFT_STATE_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartPrimaryChkSoftStateUnexpectedRespSameAddrError:   "START_PRIMARY_CHK_SOFT_STATE_UNEXPECTED_RESP_SAME_ADDR_ERROR",
	UpdateErrStartPrimaryChkSoftStateUnknownError:                  "START_PRIMARY_CHK_SOFT_STATE_UNKNOWN_ERROR",
	UpdateErrStartSecondaryChkSoftStateNoResp:                      "START_SECONDARY_CHK_SOFT_STATE_NO_RESP",
	UpdateErrStartSecondaryChkSoftStateUnexpectedRespAddrError:     "START_SECONDARY_CHK_SOFT_STATE_UNEXPECTED_RESP_ADDR_ERROR",
	UpdateErrStartSecondaryChkSoftStateUnexpectedRespGroupIDError:  "START_SECONDARY_CHK_SOFT_STATE_UNEXPECTED_RESP_GROUP_ID_ERROR",
	UpdateErrStartSecondaryChkSoftStateUnexpectedRespSameAddrError: "START_SECONDARY_CHK_SOFT_STATE_UNEXPECTED_RESP_SAME_ADDR_ERROR",
	UpdateErrStartSecondaryChkSoftStateUnknownError:                "START_SECONDARY_CHK_SOFT_STATE_UNKNOWN_ERROR",
}

var dataErrorNames = map[UpdateError]string{
	UpdateErrDataPrimaryWriteNoResp:             "DATA_PRIMARY_WRITE_NO_RESP",
	UpdateErrDataPrimaryWriteFailure:            "DATA_PRIMARY_WRITE_FAILURE",
	UpdateErrDataPrimaryWriteUnknownError:       "DATA_PRIMARY_WRITE_UNKNOWN_ERROR",
	UpdateErrDataSecondaryWriteNoResp:           "DATA_SECONDARY_WRITE_NO_RESP",
	UpdateErrDataSecondaryWriteFailure:          "DATA_SECONDARY_WRITE_FAILURE",
	UpdateErrDataSecondaryWriteUnknownError:     "DATA_SECONDARY_WRITE_UNKNOWN_ERROR",
	UpdateErrDataCANWriteNoResp:                 "DATA_CAN_WRITE_NO_RESP",
	UpdateErrDataCANWriteFailure:                "DATA_CAN_WRITE_FAILURE",
	UpdateErrDataPrimaryInvalidSequenceNumber:   "DATA_PRIMARY_INVALID_SEQUENCE_NUMBER",
	UpdateErrDataSecondaryInvalidSequenceNumber: "DATA_SECONDARY_INVALID_SEQUENCE_NUMBER",
	UpdateErrDataCANInvalidSequenceNumber:       "DATA_CAN_INVALID_SEQUENCE_NUMBER",
	UpdateErrDataInvalidSequenceNumber:          "DATA_INVALID_SEQUENCE_NUMBER",
}

var endErrorNames = map[UpdateError]string{
	UpdateErrEndPrimaryUpdateNoResp:          "END_PRIMARY_UPDATE_NO_RESP",
	UpdateErrEndPrimaryUpdateFailure:         "END_PRIMARY_UPDATE_FAILURE",
	UpdateErrEndPrimaryUpdateUnknownError:    "END_PRIMARY_UPDATE_UNKNOWN_ERROR",
	UpdateErrEndPrimaryVersionNoResp:         "END_PRIMARY_VERSION_NO_RESP",
	UpdateErrEndPrimaryWrongVersion:          "END_PRIMARY_WRONG_VERSION",
	UpdateErrEndPrimaryAddrIsOutOfRange:      "END_PRIMARY_ADDRISOUTOFRANGE",
	UpdateErrEndPrimaryGroupIDIsOutOfRange:   "END_PRIMARY_GROUPIDISOUTOFRANGE",
	UpdateErrEndPrimaryAddrIsSame:            "END_PRIMARY_ADDRISSAME",
	UpdateErrEndPrimaryUnknownError:          "END_PRIMARY_UNKNOWN_ERROR",
	UpdateErrEndSecondaryUpdateNoResp:        "END_SECONDARY_UPDATE_NO_RESP",
	UpdateErrEndSecondaryUpdateFailure:       "END_SECONDARY_UPDATE_FAILURE",
	UpdateErrEndSecondaryUpdateUnknownError:  "END_SECONDARY_UPDATE_UNKNOWN_ERROR",
	UpdateErrEndSecondaryVersionNoResp:       "END_SECONDARY_VERSION_NO_RESP",
	UpdateErrEndSecondaryWrongVersion:        "END_SECONDARY_WRONG_VERSION",
	UpdateErrEndSecondaryUnknownError:        "END_SECONDARY_UNKNOWN_ERROR",
	UpdateErrEndSecondaryAddrIsOutOfRange:    "END_SECONDARY_ADDRISOUTOFRANGE",
	UpdateErrEndSecondaryGroupIDIsOutOfRange: "END_SECONDARY_GROUPIDISOUTOFRANGE",
	UpdateErrEndSecondaryAddrIsSame:          "END_SECONDARY_ADDRISSAME",
	UpdateErrEndCANUpdateNoResp:              "END_CAN_UPDATE_NO_RESP",
	UpdateErrEndCANUpdateFailure:             "END_CAN_UPDATE_FAILURE",
	UpdateErrEndCANVersionNoResp:             "END_CAN_VERSION_NO_RESP",
	UpdateErrEndCANWrongVersion:              "END_CAN_WRONG_VERSION",
	UpdateErrEndCANUnknownError:              "END_CAN_UNKNOWN_ERROR",
	UpdateErrEndCANAddrIsOutOfRange:          "END_CAN_ADDRISOUTOFRANGE",
	UpdateErrEndCANGroupIDIsOutOfRange:       "END_CAN_GROUPIDISOUTOFRANGE",
	UpdateErrEndCANAddrIsSame:                "END_CAN_ADDRISSAME",
	UpdateErrEndNotGetSerialNumber:           "END_NOT_GET_SERIAL_NUMBER",
	UpdateErrEndUnknownError:                 "END_UNKNOWN_ERROR",
}

// Stage returns the stage implied by the numeric range. 51 and 52 report
// StageData.
func (e UpdateError) Stage() UpdateStage {
	switch {
	case e == UpdateErrUnknownReason:
		return StageUnknown
	case dataErrorNames[e] != "":
		return StageData
	case startErrorNames[e] != "":
		return StageStart
	case endErrorNames[e] != "":
		return StageEnd
	default:
		return StageUnknown
	}
}

// NameInStage returns the symbolic name of e as reported during stage.
func (e UpdateError) NameInStage(stage UpdateStage) string {
	var names map[UpdateError]string
	switch stage {
	case StageStart:
		names = startErrorNames
	case StageData:
		names = dataErrorNames
	case StageEnd:
		names = endErrorNames
	default:
		return e.String()
	}
	if name, ok := names[e]; ok {
		return name
	}
	return e.String()
}

// String returns the symbolic name, resolving 51 and 52 to the data
// errors.
func (e UpdateError) String() string {
	if e == UpdateErrUnknownReason {
		return "UNKNOWN_REASON"
	}
	for _, names := range []map[UpdateError]string{dataErrorNames, startErrorNames, endErrorNames} {
		if name, ok := names[e]; ok {
			return name
		}
	}
	return fmt.Sprintf("UPDATE_ERROR_%d", uint8(e))
}
