package protocol

import "hash/crc32"

// Digest computes the running CRC-32 (IEEE polynomial) used by the file
// transfer operations. Each update is zero-padded to a 4-byte boundary, the
// same padding the hub applies before checksumming.
//
// The zero value is ready to use.
type Digest struct {
	sum uint32
}

var crcPad [3]byte

// Update folds data (plus padding) into the digest and returns the checksum
// so far, which is exactly the value TransferChunkRequest expects after each
// chunk.
func (d *Digest) Update(data []byte) uint32 {
	d.sum = crc32.Update(d.sum, crc32.IEEETable, data)
	if pad := (4 - len(data)%4) % 4; pad > 0 {
		d.sum = crc32.Update(d.sum, crc32.IEEETable, crcPad[:pad])
	}
	return d.sum
}

// Sum32 returns the checksum of everything folded in so far.
func (d *Digest) Sum32() uint32 { return d.sum }

// Checksum returns the padded CRC-32 of data, the value StartFileUploadRequest
// expects for a whole file.
func Checksum(data []byte) uint32 {
	var d Digest
	return d.Update(data)
}
