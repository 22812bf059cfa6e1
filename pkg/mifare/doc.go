/*
Package mifare talks to MIFARE Classic 1K cards through a PC/SC contactless reader.

It provides:
  - Key material: raw card images (ParseDump) and mfoc key logs (ParseKeyLog) into a KeyStore
  - Per-block authentication with a fixed Key A then Key B order
  - Block read/write using the PC/SC storage-card pseudo-APDUs
  - The balance field stored in block 45 (DecodeMoney, EncodeMoney)
  - PC/SC connection wrapper and a card insertion Monitor

# Memory Layout

A 1K card has 16 sectors of 4 blocks, 16 bytes per block. The last block of
each sector is the trailer:

	bytes 0-5:   Key A (reads back as zeros)
	bytes 6-9:   access bits (3 bytes) + general purpose byte
	bytes 10-15: Key B

In a raw image, sector i's trailer therefore sits at offset i*64+48.

# Command Reference

All commands use CLA 0xFF and are answered with a 2-byte status word. Only
SW=9000 is success; anything else is a failure of that command and is not
decoded further.

Load Key (into reader volatile slot 0):

	Command:  FF 82 20 00 06 <key(6)>
	Response: SW

General Authenticate:

	Command:  FF 86 00 00 05 01 00 <block> <keyType> 00
	keyType:  0x60 = Key A, 0x61 = Key B
	Response: SW

Read Binary:

	Command:  FF B0 00 <block> 10
	Response: <data(16)> SW

Update Binary:

	Command:  FF D6 00 <block> 10 <data(16)>
	Response: SW

Get Data (UID):

	Command:  FF CA 00 00 00
	Response: <uid(4|7)> SW

# Authentication

Each block is authenticated immediately before it is read or written:
LoadKey(A) + Authenticate(A), and only if either step fails LoadKey(B) +
Authenticate(B). Each step is sent once. A block with no registered key
fails with FailureNoKey without any command being sent.

Fail states:

	SW=6300: wrong key or authentication rejected
	SW=6982: block not authenticated, or access bits deny the operation
	SW=6B00: block number out of range

# Balance Field

Block 45 stores a big-endian uint16 number of cents at bytes 9-10, which
are characters 18-21 of the block's hex form.
*/
package mifare
