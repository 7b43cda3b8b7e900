package shader

import "github.com/richinsley/goshadermate/graphics"

// QuadVertices are the two triangles covering clip space, drawn with
// DrawArrays(0, QuadVertexCount).
var QuadVertices = []float32{
	-1, -1, 1, -1, -1, 1,
	-1, 1, 1, -1, 1, 1,
}

const QuadVertexCount = 6

// PositionAttribute is bound to location 0 on every device.
const PositionAttribute = "in_vert"

const vertexBody = `
void main() {
    gl_Position = vec4(in_vert, 0.0, 1.0);
}
`

// VertexSource returns the full-screen vertex stage for api.
func VertexSource(api graphics.API) string {
	switch api {
	case graphics.APIGLES3:
		return "#version 300 es\nlayout (location = 0) in vec2 in_vert;\n" + vertexBody
	case graphics.APIGL41:
		return "#version 410 core\nlayout (location = 0) in vec2 in_vert;\n" + vertexBody
	}
	return "attribute vec2 in_vert;\n" + vertexBody
}
