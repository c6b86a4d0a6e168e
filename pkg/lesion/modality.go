package lesion

import "strings"

// ModalityNone is returned when no known modality matches.
const ModalityNone = "NONE"

// KnownModalities lists the recognised modality labels. Order matters: the
// first label contained in the input wins.
var KnownModalities = []string{"ADC", "t2_tse_tra"}

// ClassifyModality maps a name fragment such as a series description to its
// canonical modality label.
func ClassifyModality(s string) string {
	for _, m := range KnownModalities {
		if strings.Contains(s, m) {
			return m
		}
	}
	return ModalityNone
}
