// Package simbus simulates a DALI bus with several control gears and a
// commissioning master.
//
// Every gear on a Bus is a real gear.Gear backed by an in-memory parameter
// store, a seeded random source and a manual scheduler. Bus.Send delivers
// one forward frame to all of them and merges the backward frames the way
// the wire does: several simultaneous answers collide, and a collision is
// still an answer.
//
// Master runs the standard random-address commissioning sequence:
//
//	INITIALISE, RANDOMISE (each sent twice)
//	repeat:
//	    binary search with SEARCHADDRH/M/L + COMPARE for the lowest random address
//	    PROGRAM SHORT ADDRESS, VERIFY SHORT ADDRESS, WITHDRAW
//	until COMPARE gets no answer
//	TERMINATE
//
// It is used by `daligear simulate` and by tests that need several gears
// answering on one bus.
package simbus
