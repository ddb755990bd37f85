package builder

// pythonWrapper is copied alongside the user's function.py into every Python
// image. It reads the event from INPUT_DATA (populated as a container
// environment variable at creation time, never shell-interpolated), invokes
// the handler, and writes exactly one Envelope JSON line to stdout.
const pythonWrapper = `
import json
import os
import sys
import time
import traceback

import psutil

from function import handler


def main():
    input_data = os.environ.get("INPUT_DATA", "{}")
    try:
        event = json.loads(input_data)
    except json.JSONDecodeError:
        event = {}

    process = psutil.Process(os.getpid())
    start_time = time.time()
    start_memory = process.memory_info().rss / 1024 / 1024

    try:
        result = handler(event)
        status = "success"
        error = None
    except Exception as e:
        result = None
        status = "error"
        error = str(e) + "\n" + traceback.format_exc()

    duration_ms = (time.time() - start_time) * 1000
    end_memory = process.memory_info().rss / 1024 / 1024
    memory_used = max(end_memory - start_memory, 0)
    cpu_percent = process.cpu_percent()

    response = {
        "result": result,
        "status": status,
        "error": error,
        "metrics": {
            "duration_ms": duration_ms,
            "memory_used_mb": memory_used,
            "cpu_percent": cpu_percent,
        },
    }
    print(json.dumps(response))
    sys.stdout.flush()


if __name__ == "__main__":
    main()
`

// javascriptWrapper is the Node.js equivalent of pythonWrapper.
const javascriptWrapper = `
const { handler } = require('./function');

async function main() {
    const inputData = process.env.INPUT_DATA || '{}';
    let event;
    try {
        event = JSON.parse(inputData);
    } catch (e) {
        event = {};
    }

    const startTime = Date.now();
    const startMemory = process.memoryUsage().heapUsed / 1024 / 1024;

    let result, status, error;
    try {
        result = await handler(event);
        status = 'success';
        error = null;
    } catch (e) {
        result = null;
        status = 'error';
        error = e.stack || e.toString();
    }

    const durationMs = Date.now() - startTime;
    const endMemory = process.memoryUsage().heapUsed / 1024 / 1024;
    const memoryUsed = Math.max(endMemory - startMemory, 0);

    const response = {
        result,
        status,
        error,
        metrics: {
            duration_ms: durationMs,
            memory_used_mb: memoryUsed,
            cpu_percent: 0,
        },
    };
    console.log(JSON.stringify(response));
}

main().catch((error) => {
    console.error('wrapper error:', error);
    process.exit(1);
});
`

const pythonDockerfile = `FROM python:3.11-slim
WORKDIR /app
COPY function.py /app/
COPY wrapper.py /app/
RUN pip install --no-cache-dir psutil
CMD ["python", "wrapper.py"]
`

const javascriptDockerfile = `FROM node:20-slim
WORKDIR /app
COPY function.js /app/
COPY wrapper.js /app/
CMD ["node", "wrapper.js"]
`
