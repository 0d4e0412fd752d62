package method

type Method uint8

const (
	Unknown Method = iota
	// ANY is a route filter matching every method. It never comes from the wire.
	ANY
	GET
	POST
	PUT
	PATCH
	DELETE
	OPTIONS
)

// List contains all the methods a request may carry.
var List = []Method{GET, POST, PUT, PATCH, DELETE, OPTIONS}

var names = [...]string{
	Unknown: "UNKNOWN",
	ANY:     "ANY",
	GET:     "GET",
	POST:    "POST",
	PUT:     "PUT",
	PATCH:   "PATCH",
	DELETE:  "DELETE",
	OPTIONS: "OPTIONS",
}

func (m Method) String() string {
	if int(m) >= len(names) {
		return names[Unknown]
	}

	return names[m]
}

// Parse returns Unknown for anything but the supported wire methods. Method tokens
// are case-sensitive.
func Parse(str string) Method {
	switch len(str) {
	case 3:
		if str == "GET" {
			return GET
		} else if str == "PUT" {
			return PUT
		}
	case 4:
		if str == "POST" {
			return POST
		}
	case 5:
		if str == "PATCH" {
			return PATCH
		}
	case 6:
		if str == "DELETE" {
			return DELETE
		}
	case 7:
		if str == "OPTIONS" {
			return OPTIONS
		}
	}

	return Unknown
}

// Matches reports whether a route filter accepts the request method.
func (m Method) Matches(request Method) bool {
	return m == ANY || m == request
}

// HasBody reports whether requests of the method are expected to carry a body.
func (m Method) HasBody() bool {
	return m == POST || m == PUT || m == PATCH
}
