package rtc

// BCDToInt BCD 字节 -> 十进制
func BCDToInt(b byte) int {
	return int(b&0x0F) + int(b>>4)*10
}

// IntToBCD 十进制（0-99）-> BCD 字节
func IntToBCD(n int) byte {
	return byte((n/10)<<4 | n%10)
}
