package auth

// Navigator moves the host UI to another route.
type Navigator interface {
	Navigate(path string, replace bool)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string, replace bool)

func (f NavigatorFunc) Navigate(path string, replace bool) { f(path, replace) }

// NoopNavigator ignores navigation requests.
var NoopNavigator Navigator = NavigatorFunc(func(string, bool) {})
