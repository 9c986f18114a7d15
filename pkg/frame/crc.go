package frame

// CRC16 computes CRC16-CCITT over data: polynomial 0x1021, initial value
// 0xFFFF, most-significant-bit first per byte. This matches the checksum the
// subordinate modules compute in firmware.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)

	for _, b := range data {
		crc ^= uint16(b) << 8

		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}

	return crc
}
