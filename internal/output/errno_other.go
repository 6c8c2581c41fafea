//go:build !unix

package output

func transient(error) bool { return false }
