// Package multi 提供跨媒体类型的聚合平台 adapter：Replicate 与 Kie。
// 输出的媒体类型由参数 outputType / mediaType 决定。
package multi
