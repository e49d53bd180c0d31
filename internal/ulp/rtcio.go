package ulp

// DefaultRTCIOMap maps GPIO numbers to retained (RTC) I/O indices, following
// the ESP32 RTC IO numbering. Only these pins keep their configuration and
// can be sampled while the main processor sleeps.
var DefaultRTCIOMap = map[int]int{
	36: 0,
	37: 1,
	38: 2,
	39: 3,
	34: 4,
	35: 5,
	25: 6,
	26: 7,
	33: 8,
	32: 9,
	4:  10,
	0:  11,
	2:  12,
	15: 13,
	13: 14,
	12: 15,
	14: 16,
	27: 17,
}

// IOMap builds a GPIO to retained I/O map from an ordered list of lines.
// An empty list yields DefaultRTCIOMap.
func IOMap(lines []int) map[int]int {
	if len(lines) == 0 {
		return DefaultRTCIOMap
	}
	m := make(map[int]int, len(lines))
	for i, l := range lines {
		m[l] = i
	}
	return m
}
