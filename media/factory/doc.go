// Package factory 按 adapterName 创建 media.Adapter，并在构造前解析凭证。
//
// Package factory maps adapter names to constructors. It imports every
// provider package so that the media and base packages stay free of
// provider dependencies.
package factory
