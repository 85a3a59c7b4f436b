package main

import "time"

func epochNow() uint32 {
	return uint32(time.Now().Unix())
}
