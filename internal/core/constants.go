package core

// DefaultKeyCacheSize is the number of member verification keys kept in
// memory when WithKeyCacheSize isn't given.
const DefaultKeyCacheSize = 128
