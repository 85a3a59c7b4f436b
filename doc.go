// Package sfat implements SimpleFAT, a compact FAT-style filesystem: a
// single boot sector, one FAT chain-allocator table, flat 32-byte
// directory entries, and an inode layer binding entries to live file
// objects.
//
// A Volume is mounted over anything satisfying io.ReadWriteSeeker and
// serializes every operation behind one mutex (spec §5): the package makes
// no attempt at finer-grained locking, matching the single-threaded
// cooperative model of the filesystem it's modeled on.
package sfat
